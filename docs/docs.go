// Package docs registers the OpenAPI description served at /openapi.json.
// Regenerate with `swag init -g cmd/image-pipeline-server/main.go` after
// changing handler annotations.
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
        "/compress": {
            "get": {
                "description": "Fetches the image at url and stores the max, xs, s, m and l derivatives in the source format and as webp.",
                "produces": ["application/json"],
                "tags": ["Images"],
                "summary": "Compress one image",
                "parameters": [
                    {"type": "string", "description": "Source image URL", "name": "url", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "output id to public URL", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorBody"}}
                }
            }
        },
        "/bulk-image-transform": {
            "post": {
                "description": "Processes every URL independently; one failure never aborts the others.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Images"],
                "summary": "Compress many images",
                "parameters": [
                    {"description": "URLs to process", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/imageapi.bulkRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/image.BatchReport"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorBody"}}
                }
            }
        },
        "/image-transform-json": {
            "get": {
                "description": "Fetches url, collects every string stored under one of keys at any depth, processes them and returns the deduplicated list.",
                "produces": ["application/json"],
                "tags": ["Images"],
                "summary": "Compress images referenced by a JSON document",
                "parameters": [
                    {"type": "string", "description": "JSON document URL", "name": "url", "in": "query", "required": true},
                    {"type": "string", "description": "Comma separated key names", "name": "keys", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorBody"}}
                }
            }
        },
        "/scrape-images": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Images"],
                "summary": "Compress every image on a page",
                "parameters": [
                    {"description": "Page URL", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/imageapi.scrapeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/imageapi.ScrapeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorBody"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorBody"}}
                }
            }
        },
        "/api/manifests": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Manifests"],
                "summary": "Last recorded outputs of a source URL",
                "parameters": [
                    {"type": "string", "description": "Source image URL", "name": "url", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/api/batches/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Manifests"],
                "summary": "Stored batch report",
                "parameters": [
                    {"type": "string", "description": "Batch ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/api/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "httptransport.APIResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "httptransport.ErrorBody": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "imageapi.bulkRequest": {
            "type": "object",
            "properties": {
                "urls": {"type": "array", "items": {"type": "string"}}
            }
        },
        "imageapi.scrapeRequest": {
            "type": "object",
            "properties": {
                "url": {"type": "string"}
            }
        },
        "imageapi.ScrapeResponse": {
            "type": "object",
            "properties": {
                "report": {"$ref": "#/definitions/image.BatchReport"},
                "result": {"type": "string"}
            }
        },
        "image.ItemResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"type": "string"},
                "ok": {"type": "boolean"},
                "outputs": {"type": "object", "additionalProperties": {"type": "string"}},
                "stage": {"type": "string"},
                "url": {"type": "string"}
            }
        },
        "image.BatchReport": {
            "type": "object",
            "properties": {
                "duration": {"type": "integer"},
                "failed": {"type": "integer"},
                "id": {"type": "string"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/image.ItemResult"}},
                "started_at": {"type": "string"},
                "succeeded": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Image Pipeline API",
	Description:      "Fetches remote images and stores resized JPEG/PNG/GIF and WebP derivatives.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
