package llm

import "time"

// ============================================================
// Persisted catalogue rows
//
// These GORM-backed rows back the "administrator-configured overrides"
// and "dynamic listing" tiers of the Model Registry merge policy
// (hard-coded < dynamic < configured). They are not the canonical
// ModelInfo type used by routers — see model_registry.go for that —
// but are the storage shape the registry loads overrides from.
// ============================================================

// ModelRow is a persisted model descriptor, used as an administrator
// override or a cached dynamic listing.
type ModelRow struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ModelID          string    `gorm:"size:150;not null;uniqueIndex" json:"model_id"`
	Provider         string    `gorm:"size:50;not null;index" json:"provider"`
	ProviderModelID  string    `gorm:"size:150;not null" json:"provider_model_id"`
	DisplayName      string    `gorm:"size:200" json:"display_name"`
	ContextWindow    int       `gorm:"default:0" json:"context_window"`
	SupportsComplete bool      `gorm:"default:true" json:"supports_completions"`
	SupportsEmbed    bool      `gorm:"default:false" json:"supports_embeddings"`
	SupportsStream   bool      `gorm:"default:true" json:"supports_streaming"`
	SupportsTools    bool      `gorm:"default:false" json:"supports_function_calling"`
	SupportsVision   bool      `gorm:"default:false" json:"supports_vision"`
	InputCostPer1K   float64   `gorm:"type:decimal(10,6);default:0" json:"input_cost_per_1k"`
	OutputCostPer1K  float64   `gorm:"type:decimal(10,6);default:0" json:"output_cost_per_1k"`
	DefaultLatencyMs int       `gorm:"default:0" json:"default_latency_ms"`
	Source           string    `gorm:"size:20;default:'configured'" json:"source"` // configured|dynamic
	Enabled          bool      `gorm:"default:true" json:"enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (ModelRow) TableName() string {
	return "gw_model_rows"
}

// ProviderRow is a persisted provider registration (credentials live in
// configuration, not here; this is catalogue/status bookkeeping only).
type ProviderRow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProviderRow) TableName() string {
	return "gw_provider_rows"
}

// AuditLog records a best-effort trail of administrative and routing
// decisions; written via the persistence sink, never on the request's
// critical path.
type AuditLog struct {
	ID           uint
	CorrelationID string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]interface{}
	CreatedAt    time.Time
}
