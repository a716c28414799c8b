// Package docs holds the OpenAPI description served on /swagger/*.
// Regenerate with: swag init -g cmd/server/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "Login credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "description": "field_officer and finance present their role's current access code (single use);\nmanager presents the configured manager secret.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a privileged user",
                "parameters": [
                    {"description": "User registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "429": {"description": "Too Many Requests", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/v1/access-codes": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Supersedes the role's active code and mints a new one valid for 24 hours.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["access-codes"],
                "summary": "Generate an access code",
                "parameters": [
                    {"description": "Target role (field_officer or finance)", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.generateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.accessCodeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/v1/access-codes/active": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["access-codes"],
                "summary": "List active access codes",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.activeCodeResponse"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/v1/access-codes/consume": {
            "post": {
                "description": "Single use. A successful consumption rotates the role's code.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["access-codes"],
                "summary": "Validate and consume an access code",
                "parameters": [
                    {"description": "Presented role and code", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.consumeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.consumeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "429": {"description": "Too Many Requests", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/v1/access-codes/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "All records newest first, optionally filtered by role and status.",
                "produces": ["application/json"],
                "tags": ["access-codes"],
                "summary": "Access code history",
                "parameters": [
                    {"type": "integer", "description": "Maximum records (default 50, max 200)", "name": "limit", "in": "query"},
                    {"type": "string", "description": "Filter by role", "name": "role", "in": "query"},
                    {"type": "string", "description": "Filter by status (active, expired, used)", "name": "status", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.accessCodeResponse"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/v1/access-codes/{code}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["access-codes"],
                "summary": "Revoke an active access code",
                "parameters": [
                    {"type": "string", "description": "Access code (e.g. 7A8B9C2D)", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "domain.User": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "handler.accessCodeResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "created_at": {"type": "string"},
                "created_by": {"type": "string"},
                "expires_at": {"type": "string"},
                "role": {"type": "string"},
                "status": {"type": "string"},
                "used_at": {"type": "string"},
                "used_by": {"type": "string"}
            }
        },
        "handler.activeCodeResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "created_at": {"type": "string"},
                "expires_at": {"type": "string"},
                "role": {"type": "string"},
                "status": {"type": "string"},
                "time_remaining_seconds": {"type": "integer"}
            }
        },
        "handler.authResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/domain.User"}
            }
        },
        "handler.consumeRequest": {
            "type": "object",
            "required": ["code", "consumer_identity", "role"],
            "properties": {
                "code": {"type": "string"},
                "consumer_identity": {"type": "string", "maxLength": 255},
                "role": {"type": "string"}
            }
        },
        "handler.consumeResponse": {
            "type": "object",
            "properties": {
                "role": {"type": "string"},
                "valid": {"type": "boolean"}
            }
        },
        "handler.generateRequest": {
            "type": "object",
            "required": ["role"],
            "properties": {
                "role": {"type": "string"}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handler.registerRequest": {
            "type": "object",
            "required": ["access_code", "email", "password", "role"],
            "properties": {
                "access_code": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"},
                "password": {"type": "string", "minLength": 8},
                "role": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Access Code Service API",
	Description:      "Issues, rotates and consumes single-use registration codes for privileged roles.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
