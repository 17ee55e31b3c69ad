package router

import (
	"context"
	"regexp"
	"strings"

	llmpkg "github.com/corvusgate/gateway/llm"
)

// ContentFamily is one of the priority-ordered content classifications the
// Content-Based Router checks, in the fixed order Code, Math, Creative,
// Analytical, LongForm, General. The order is part of the contract and
// must not be changed: the first matching family wins.
type ContentFamily string

const (
	FamilyCode       ContentFamily = "Code"
	FamilyMath       ContentFamily = "Math"
	FamilyCreative   ContentFamily = "Creative"
	FamilyAnalytical ContentFamily = "Analytical"
	FamilyLongForm   ContentFamily = "LongForm"
	FamilyGeneral    ContentFamily = "General"
)

var familyOrder = []ContentFamily{
	FamilyCode, FamilyMath, FamilyCreative, FamilyAnalytical, FamilyLongForm, FamilyGeneral,
}

var defaultFamilyPatterns = map[ContentFamily]*regexp.Regexp{
	FamilyCode:       regexp.MustCompile("(?is)```|\\bfunc\\b|\\bclass\\b|\\bimport\\b|\\bdef\\b|;\\s*$"),
	FamilyMath:       regexp.MustCompile(`(?i)\b(equation|integral|derivative|theorem|proof|solve for)\b|[=+\-*/^]{1}\s*\d`),
	FamilyCreative:   regexp.MustCompile(`(?i)\b(write a (story|poem|song)|once upon a time|creative writing)\b`),
	FamilyAnalytical: regexp.MustCompile(`(?i)\b(analy[sz]e|compare and contrast|pros and cons|evaluate)\b`),
	// LongForm has no content regex of its own; it is selected by context-window
	// need (see Route) rather than a textual pattern.
	FamilyGeneral: regexp.MustCompile(`.*`),
}

// ContentModelRegistry is the subset of ModelRegistry the content router
// needs, declared narrowly so tests can supply a fake.
type ContentModelRegistry interface {
	Get(id string) (llmpkg.ModelInfo, error)
	List() []llmpkg.ModelInfo
}

// ContentRouter classifies the concatenation of user-message contents
// against the fixed family order and picks the first available preferred
// model for the matched family.
type ContentRouter struct {
	Enabled bool
	Patterns        map[ContentFamily]*regexp.Regexp
	PreferredModels map[ContentFamily][]string
	// LongFormMinChars is the total user-message character count above
	// which content is classified as LongForm (checked after Code, Math,
	// Creative, and Analytical have all failed to match, and before the
	// General catch-all).
	LongFormMinChars int
	LongFormMinCtx   int
	registry         ContentModelRegistry
}

// NewContentRouter creates a router with the given preferred-models table.
// Patterns defaults to defaultFamilyPatterns when nil. LongFormMinCtx
// defaults to 32000, LongFormMinChars to 6000.
func NewContentRouter(registry ContentModelRegistry, preferred map[ContentFamily][]string, patterns map[ContentFamily]*regexp.Regexp, longFormMinCtx, longFormMinChars int) *ContentRouter {
	if patterns == nil {
		patterns = defaultFamilyPatterns
	}
	if longFormMinCtx <= 0 {
		longFormMinCtx = 32000
	}
	if longFormMinChars <= 0 {
		longFormMinChars = 6000
	}
	return &ContentRouter{
		Enabled:          true,
		Patterns:         patterns,
		PreferredModels:  preferred,
		LongFormMinCtx:   longFormMinCtx,
		LongFormMinChars: longFormMinChars,
		registry:         registry,
	}
}

func (r *ContentRouter) Route(_ context.Context, req *llmpkg.ChatRequest) RoutingResult {
	if !r.Enabled {
		return fail("ContentBased", "disabled")
	}

	var sb strings.Builder
	for _, m := range req.Messages {
		if m.Role == llmpkg.RoleUser {
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
	}
	text := sb.String()

	family := r.classify(text)

	if family == FamilyLongForm {
		if model, ok := r.largestContextModel(); ok {
			return success("ContentBased", model.Provider, model.ID, model.ProviderModelID, "longform: largest context window")
		}
		// Fall through to the family's preferred list below.
	}

	for _, modelID := range r.PreferredModels[family] {
		info, err := r.registry.Get(modelID)
		if err == nil {
			return success("ContentBased", info.Provider, info.ID, info.ProviderModelID, "content family "+string(family))
		}
	}

	return fail("ContentBased", "no preferred model available for family "+string(family))
}

// classify returns the first matching family in the fixed priority order.
// General always matches (its pattern is `.*`), so classify never returns
// an unrecognised value.
func (r *ContentRouter) classify(text string) ContentFamily {
	for _, family := range familyOrder {
		switch family {
		case FamilyLongForm:
			if len(text) >= r.LongFormMinChars {
				return FamilyLongForm
			}
		case FamilyGeneral:
			return FamilyGeneral
		default:
			if p, ok := r.Patterns[family]; ok && p.MatchString(text) {
				return family
			}
		}
	}
	return FamilyGeneral
}

func (r *ContentRouter) largestContextModel() (llmpkg.ModelInfo, bool) {
	var best llmpkg.ModelInfo
	found := false
	for _, m := range r.registry.List() {
		if !m.SupportsCompletion {
			continue
		}
		if m.ContextWindow < r.LongFormMinCtx {
			continue
		}
		if !found || m.ContextWindow > best.ContextWindow {
			best = m
			found = true
		}
	}
	return best, found
}
