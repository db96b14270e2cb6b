package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Learner Eligibility Report API",
        "description": "Ingests learner mark sheets, evaluates course eligibility and stores one report per center and batch.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Uploads", "description": "CSV ingestion and eligibility evaluation"},
        {"name": "Reports", "description": "Saved eligibility reports"}
    ],
    "paths": {
        "/uploads": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Ingest a learner CSV",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid CSV", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Upload too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "List saved reports",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Reports"],
                "summary": "Save an eligibility report",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveReportRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replaced", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/centers": {
            "get": {
                "tags": ["Reports"],
                "summary": "List saved reports grouped by center",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/access": {
            "post": {
                "tags": ["Reports"],
                "summary": "Exchange the viewing password for a report access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportAccessRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Wrong password", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{center}/{batch}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Fetch a saved report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "center", "in": "path", "type": "string", "required": true},
                    {"name": "batch", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or invalid token"},
                    "403": {"description": "Token issued for another report"},
                    "404": {"description": "Report not found"},
                    "500": {"description": "Stored report is corrupt"}
                }
            }
        },
        "/reports/{center}/{batch}/export": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a saved report as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "center", "in": "path", "type": "string", "required": true},
                    {"name": "batch", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format"},
                    "404": {"description": "Report not found"}
                }
            }
        }
    },
    "definitions": {
        "MarkPair": {
            "type": "object",
            "properties": {
                "actual": {"type": "number"},
                "max": {"type": "number"}
            }
        },
        "CourseResult": {
            "type": "object",
            "properties": {
                "classroomMarks": {"$ref": "#/definitions/MarkPair"},
                "labMarks": {"$ref": "#/definitions/MarkPair"},
                "sessionCount": {"$ref": "#/definitions/MarkPair"},
                "eligible": {"type": "boolean"},
                "enrolled": {"type": "boolean"}
            }
        },
        "LearnerRecord": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "courses": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/CourseResult"}
                },
                "overallEligible": {"type": "boolean"},
                "comment": {"type": "string", "maxLength": 500}
            }
        },
        "SaveReportRequest": {
            "type": "object",
            "required": ["centerCode", "batchName", "uploadedBy", "data"],
            "properties": {
                "centerCode": {"type": "string", "maxLength": 64},
                "batchName": {"type": "string", "maxLength": 64},
                "uploadedBy": {"type": "string", "maxLength": 128},
                "data": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/LearnerRecord"}
                }
            }
        },
        "ReportAccessRequest": {
            "type": "object",
            "required": ["centerCode", "batchName", "password"],
            "properties": {
                "centerCode": {"type": "string"},
                "batchName": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
