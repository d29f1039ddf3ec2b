// Package docs serves the OpenAPI description of the HTTP transport routes.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {"type": "string"}
                        }
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["system"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/mcp": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json", "text/event-stream"],
                "tags": ["mcp"],
                "summary": "Streamable MCP endpoint",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ws/status": {
            "get": {
                "description": "Upgrades to a WebSocket and pushes the machine status every interval (default 1s, max 10s). A failed poll sends an error frame and the feed continues.",
                "tags": ["system"],
                "summary": "Live status feed",
                "parameters": [
                    {
                        "type": "string",
                        "example": "2s",
                        "description": "Poll interval as a Go duration",
                        "name": "interval",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "example": 2000,
                        "description": "Poll interval in milliseconds",
                        "name": "interval_ms",
                        "in": "query"
                    }
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Gaggiuino MCP Server",
	Description:      "Tool server for a Gaggiuino espresso machine over the streamable MCP transport.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
