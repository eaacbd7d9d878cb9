// Package api holds the OpenAPI document served at /openapi.yaml.
package api

import _ "embed"

// OpenAPISpec is the OpenAPI 3.1 document of the netops HTTP API.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
