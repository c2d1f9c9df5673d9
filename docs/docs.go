// Package docs holds the OpenAPI document served under /api/swagger.
// It mirrors the swag annotations on the handlers in internal/server; update both together.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"termsOfService": "http://swagger.io/terms/",
		"contact": {
			"name": "API Support",
			"email": "support@4wcycle.org"
		},
		"license": {
			"name": "MIT",
			"url": "https://opensource.org/licenses/MIT"
		},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/admin/login": {
			"post": {
				"description": "Exchange the admin username and password for a signed credential",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Admin login",
				"parameters": [
					{
						"description": "Admin credentials",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.LoginRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/service.LoginResult"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"429": {
						"description": "Too Many Requests",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/admin/logout": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Admin logout",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/admin/feature-flags": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"admin"
				],
				"summary": "List feature flags",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					}
				}
			}
		},
		"/submissions/submit": {
			"post": {
				"description": "Multipart form with name, email, title, route, experience and optional photos",
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"submissions"
				],
				"summary": "Submit a ride story",
				"parameters": [
					{
						"type": "string",
						"description": "Rider name",
						"name": "name",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Contact email",
						"name": "email",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Story title",
						"name": "title",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Route description",
						"name": "route",
						"in": "formData",
						"required": true
					},
					{
						"type": "string",
						"description": "Ride experience",
						"name": "experience",
						"in": "formData",
						"required": true
					},
					{
						"type": "file",
						"description": "Up to five photos",
						"name": "photos",
						"in": "formData"
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"429": {
						"description": "Too Many Requests",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/health": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"health"
				],
				"summary": "Health check",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				}
			}
		},
		"/published": {
			"get": {
				"tags": [
					"submissions"
				],
				"summary": "Published stories (alias)",
				"responses": {
					"302": {
						"description": "Found"
					}
				}
			}
		},
		"/submissions/published": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"submissions"
				],
				"summary": "List published stories",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.PublishedSubmission"
							}
						}
					}
				}
			}
		},
		"/submissions": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"admin"
				],
				"summary": "List submissions",
				"parameters": [
					{
						"type": "string",
						"description": "pending, approved or rejected",
						"name": "status",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.SubmissionRecord"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/submissions/stats": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"admin"
				],
				"summary": "Submission counts",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.SubmissionStats"
						}
					}
				}
			}
		},
		"/submissions/reconcile": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"admin"
				],
				"summary": "Reconcile store and upload directory",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/service.ReconcileReport"
						}
					}
				}
			}
		},
		"/submissions/{id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"admin"
				],
				"summary": "Get a submission",
				"parameters": [
					{
						"type": "integer",
						"description": "Submission ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/models.SubmissionRecord"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			},
			"patch": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"admin"
				],
				"summary": "Moderate a submission",
				"parameters": [
					{
						"type": "integer",
						"description": "Submission ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Decision",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/server.UpdateStatusRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"admin"
				],
				"summary": "Delete a submission",
				"parameters": [
					{
						"type": "integer",
						"description": "Submission ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		},
		"/ws/ticket": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"admin"
				],
				"summary": "Issue a websocket ticket",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/models.ErrorResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"models.ErrorResponse": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string"
				},
				"code": {
					"type": "string"
				},
				"details": {
					"type": "string"
				}
			}
		},
		"models.PublishedSubmission": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"name": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"route": {
					"type": "string"
				},
				"experience": {
					"type": "string"
				},
				"photos": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"photo_urls": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"created_at": {
					"type": "string",
					"format": "date-time"
				}
			}
		},
		"models.SubmissionRecord": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"name": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"route": {
					"type": "string"
				},
				"experience": {
					"type": "string"
				},
				"photos": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"photo_urls": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"status": {
					"type": "string",
					"enum": [
						"pending",
						"approved",
						"rejected"
					]
				},
				"admin_note": {
					"type": "string"
				},
				"created_at": {
					"type": "string",
					"format": "date-time"
				},
				"updated_at": {
					"type": "string",
					"format": "date-time"
				}
			}
		},
		"models.SubmissionStats": {
			"type": "object",
			"properties": {
				"pending": {
					"type": "integer"
				},
				"approved": {
					"type": "integer"
				},
				"rejected": {
					"type": "integer"
				},
				"total": {
					"type": "integer"
				}
			}
		},
		"server.LoginRequest": {
			"type": "object",
			"properties": {
				"username": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			}
		},
		"server.UpdateStatusRequest": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string"
				},
				"admin_note": {
					"type": "string"
				}
			}
		},
		"service.LoginResult": {
			"type": "object",
			"properties": {
				"token": {
					"type": "string"
				},
				"expires_at": {
					"type": "string",
					"format": "date-time"
				}
			}
		},
		"service.ReconcileReport": {
			"type": "object",
			"properties": {
				"finished_deletions": {
					"type": "array",
					"items": {
						"type": "integer"
					}
				},
				"removed_orphans": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"missing_files": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"failed_removals": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"started_at": {
					"type": "string",
					"format": "date-time"
				},
				"duration": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and JWT token.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "4wCycle API",
	Description:      "Ride-story submissions and admin moderation for the 4wCycle site",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
