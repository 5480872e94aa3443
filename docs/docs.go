// Package docs 内嵌 HTTP 接口的 OpenAPI 文档
package docs

import _ "embed"

// OpenAPI OpenAPI 3 文档（YAML）
//
//go:embed api/openapi.yaml
var OpenAPI []byte
