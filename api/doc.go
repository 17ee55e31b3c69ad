// Package api holds the request and response types of the gateway HTTP API,
// annotated for swag.
//
// # API Overview
//
// The gateway server (cmd/gateway) serves:
//   - /v1/completions and /v1/completions/stream: chat completions with
//     multi-provider routing and fallback
//   - /v1/embeddings: embeddings
//   - /v1/models: the models known to the model registry
//   - /health, /healthz, /ready, /readyz, /version: health and build info
//   - /metrics: Prometheus metrics, on the separate metrics port
//
// # Authentication
//
// Most API endpoints require authentication via the X-API-Key header:
//
//	X-API-Key: your-api-key
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Generating Documentation
//
// No OpenAPI file is checked in and the server does not serve one. A Swagger
// specification can be generated from the annotations with swag:
//
//	swag init -g cmd/gateway/main.go -o api --parseDependency --parseInternal
package api
