package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Recruit Pipeline API",
        "description": "Submission lifecycle engine for the recruitment pipeline",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Submissions", "description": "Candidate submissions and their lifecycle"},
        {"name": "Jobs", "description": "Job capacity and submission listings"},
        {"name": "Reports", "description": "Placement reporting"}
    ],
    "paths": {
        "/submissions": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit a candidate to a job",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateSubmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown candidate or job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "DUPLICATE_SUBMISSION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{code}": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Get submission detail with allowed transitions",
                "parameters": [
                    {"in": "path", "name": "code", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{code}/transitions": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Move a submission to another lifecycle state",
                "parameters": [
                    {"in": "path", "name": "code", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "MISSING_REQUIRED_FIELD or VALIDATION_ERROR", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "INVALID_TRANSITION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{code}/client-status": {
            "patch": {
                "tags": ["Submissions"],
                "summary": "Update the client-facing status",
                "parameters": [
                    {"in": "path", "name": "code", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ClientStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "INVALID_TRANSITION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{code}/reverse-placement": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Undo a placement recorded in error (ADMIN or MANAGER)",
                "parameters": [
                    {"in": "path", "name": "code", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ReversePlacementRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{code}/timeline": {
            "get": {
                "tags": ["Submissions"],
                "summary": "List activity recorded for a submission",
                "parameters": [
                    {"in": "path", "name": "code", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs/{code}/submissions": {
            "get": {
                "tags": ["Jobs"],
                "summary": "List submissions for a job",
                "parameters": [
                    {"in": "path", "name": "code", "required": true, "type": "string"},
                    {"in": "query", "name": "status", "type": "string", "description": "Comma separated statuses"},
                    {"in": "query", "name": "active", "type": "boolean"},
                    {"in": "query", "name": "limit", "type": "integer"},
                    {"in": "query", "name": "offset", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs/{code}/capacity": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Get remaining openings for a job",
                "parameters": [
                    {"in": "path", "name": "code", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/placements": {
            "get": {
                "tags": ["Reports"],
                "summary": "Placement rate by recruiter",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "client", "type": "string"},
                    {"in": "query", "name": "from", "type": "string"},
                    {"in": "query", "name": "to", "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/time-to-fill": {
            "get": {
                "tags": ["Reports"],
                "summary": "Days from job opening to its latest placement",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "client", "type": "string"},
                    {"in": "query", "name": "from", "type": "string"},
                    {"in": "query", "name": "to", "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateSubmissionRequest": {
            "type": "object",
            "required": ["candidate_code", "job_code"],
            "properties": {
                "candidate_code": {"type": "string"},
                "job_code": {"type": "string"},
                "submitted_by": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "OfferDetails": {
            "type": "object",
            "properties": {
                "salary": {"type": "number"},
                "start_date": {"type": "string", "format": "date"},
                "notes": {"type": "string"}
            }
        },
        "TransitionPayload": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"},
                "offer_details": {"$ref": "#/definitions/OfferDetails"},
                "start_date": {"type": "string", "format": "date"},
                "interview_date": {"type": "string"},
                "feedback": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "TransitionRequest": {
            "type": "object",
            "required": ["target_state"],
            "properties": {
                "target_state": {"type": "string", "enum": ["submitted", "interviewing", "offered", "placed", "rejected", "withdrawn"]},
                "actor": {"type": "string"},
                "payload": {"$ref": "#/definitions/TransitionPayload"}
            }
        },
        "ClientStatusRequest": {
            "type": "object",
            "required": ["client_status"],
            "properties": {
                "client_status": {"type": "string", "enum": ["not_sent", "sent", "in_review"]},
                "actor": {"type": "string"}
            }
        },
        "ReversePlacementRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string"},
                "actor": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
