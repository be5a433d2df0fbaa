// Package docs holds the OpenAPI document for cartd. Regenerate with
// swag init -g cmd/cartd/main.go after changing handler annotations.
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
        "/cart": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Return the authenticated user's cart",
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Get cart",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CartResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/cart/merge": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Upsert lines by product and variant. Send exactly one of cartToAdd or cart.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Merge lines into the cart",
                "parameters": [
                    {
                        "description": "Lines to merge",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/dto.MergeRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CartResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/system/info": {
            "get": {
                "description": "Return the service name, version and uptime",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "System info",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        }
    },
    "definitions": {
        "cart.Line": {
            "type": "object",
            "properties": {
                "productId": {"type": "string"},
                "variantId": {"type": "string", "x-nullable": true},
                "quantity": {"type": "integer", "minimum": 1},
                "unitPrice": {"type": "string", "example": "9.99"},
                "listPrice": {"type": "string", "x-nullable": true, "example": "12.00"},
                "maxAvailable": {"type": "integer", "x-nullable": true},
                "name": {"type": "string"},
                "color": {"type": "string"},
                "size": {"type": "string"}
            }
        },
        "dto.CartResponse": {
            "type": "object",
            "properties": {
                "cart": {"type": "array", "items": {"$ref": "#/definitions/cart.Line"}}
            }
        },
        "dto.MergeRequest": {
            "type": "object",
            "properties": {
                "cartToAdd": {"type": "array", "maxItems": 500, "items": {"$ref": "#/definitions/cart.Line"}},
                "cart": {"type": "array", "maxItems": 500, "items": {"$ref": "#/definitions/cart.Line"}}
            }
        },
        "dto.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "request_id": {"type": "string"},
                "details": {"type": "array", "items": {"$ref": "#/definitions/dto.ValidationDetail"}}
            }
        },
        "dto.Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorInfo"}
            }
        },
        "dto.ValidationDetail": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Bearer access token",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Cart Service API",
	Description:      "Authoritative per-user cart for the storefront.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
