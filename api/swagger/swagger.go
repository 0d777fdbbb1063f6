package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Class section timetables: bulk slot assignment with conflict checking, and timetable reads.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Timetable", "description": "Class section timetables"},
        {"name": "Catalog", "description": "Reference data for timetable editors"}
    ],
    "paths": {
        "/class-sections/{id}/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get class section timetable",
                "description": "Occupied slots only, ordered by day and start time. Defaults to the current academic year.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "yearId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TimetableViewEnvelope"}},
                    "404": {"description": "Class section or academic year not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No academic year could be resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Timetable"],
                "summary": "Bulk update class section timetable",
                "description": "Each item is validated and applied on its own. 200 when every item applied, 207 when some failed, 422 when all failed; the body is the same result in every case.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkUpdateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Fully applied", "schema": {"$ref": "#/definitions/BulkResultEnvelope"}},
                    "207": {"description": "Partially applied", "schema": {"$ref": "#/definitions/BulkResultEnvelope"}},
                    "400": {"description": "Malformed payload or too many items", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Class section not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Every item rejected, or no academic year", "schema": {"$ref": "#/definitions/BulkResultEnvelope"}}
                }
            }
        },
        "/class-sections/{id}/timetable/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Export class section timetable",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "yearId", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered document", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Institution-wide timetable",
                "parameters": [
                    {"name": "yearId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/time-slots": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List time slots",
                "description": "The weekly slot catalog ordered by day and start time, breaks included.",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/subjects": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List subjects a teacher may teach",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SlotChangeRequest": {
            "type": "object",
            "required": ["slot_id"],
            "properties": {
                "slot_id": {"type": "string"},
                "subject_id": {"type": "string", "description": "Omit together with teacher_id to clear the slot"},
                "teacher_id": {"type": "string", "description": "Omit together with subject_id to clear the slot"}
            }
        },
        "BulkUpdateTimetableRequest": {
            "type": "object",
            "required": ["items"],
            "properties": {
                "academic_year_id": {"type": "string"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/SlotChangeRequest"}}
            }
        },
        "BulkItemError": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "slot_id": {"type": "string"},
                "reason": {"type": "string", "enum": ["SLOT_NOT_FOUND", "INCOMPLETE_PAIR", "TEACHER_NOT_AUTHORIZED_FOR_SUBJECT", "TEACHER_CONFLICT", "STORE_CONFLICT", "STORE_FAILURE", "CANCELLED"]},
                "message": {"type": "string"},
                "conflict_class_section": {"type": "string"},
                "slot_label": {"type": "string"}
            }
        },
        "BulkResult": {
            "type": "object",
            "properties": {
                "created": {"type": "integer"},
                "updated": {"type": "integer"},
                "deleted": {"type": "integer"},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/BulkItemError"}}
            }
        },
        "TimetableEntry": {
            "type": "object",
            "properties": {
                "assignment_id": {"type": "string"},
                "class_section_id": {"type": "string"},
                "slot_id": {"type": "string"},
                "slot_name": {"type": "string"},
                "day_of_week": {"type": "integer", "minimum": 1, "maximum": 7},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "is_break": {"type": "boolean"},
                "subject_id": {"type": "string"},
                "subject_name": {"type": "string"},
                "teacher_id": {"type": "string"},
                "teacher_name": {"type": "string"},
                "assigned_by_id": {"type": "string"}
            }
        },
        "TimetableView": {
            "type": "object",
            "properties": {
                "class_section": {"type": "object"},
                "academic_year": {"type": "object"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/TimetableEntry"}}
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
        },
        "TimetableViewEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/TimetableView"},
                "meta": {"type": "object"}
            }
        },
        "BulkResultEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/BulkResult"}
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
