package manifest

// MetaSchema is the JSON Schema every tool manifest file must satisfy before
// its declared input schema is even built. Structural problems are caught
// here; semantic ones (bad defaults, empty enums) are caught by schema.New.
const MetaSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Tool Manifest",
  "type": "object",
  "required": ["name", "entrypoint"],
  "additionalProperties": false,
  "properties": {
    "name": {
      "type": "string",
      "minLength": 1,
      "pattern": "^[a-z0-9_-]+$"
    },
    "description": {
      "type": "string"
    },
    "entrypoint": {
      "type": "string",
      "minLength": 1
    },
    "input": {
      "type": ["object", "null"],
      "additionalProperties": {
        "type": "object",
        "required": ["type"],
        "additionalProperties": false,
        "properties": {
          "type": {
            "type": "string",
            "enum": ["string", "number", "integer", "boolean", "array", "object", "json-blob"]
          },
          "description": {"type": "string"},
          "required": {"type": "boolean"},
          "default": {},
          "enum": {"type": "array"},
          "minimum": {"type": "number"},
          "maximum": {"type": "number"}
        }
      }
    },
    "required": {
      "type": "array",
      "items": {"type": "string"}
    },
    "functions": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string"},
          "doc": {"type": "string"},
          "parameters": {"type": "array", "items": {"type": "string"}},
          "module": {"type": "string"}
        }
      }
    }
  }
}`
