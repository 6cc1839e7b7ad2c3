package workflow

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema estrutural do documento de workflow. A coerência referencial
// (chaves de estado, initialState) é verificada à parte em Validate.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["initialState", "states"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "version": {"type": "integer"},
    "initialState": {"type": "string"},
    "states": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key"],
        "properties": {
          "key": {"type": "string"},
          "label": {"type": "string"},
          "type": {"enum": ["normal", "terminal"]},
          "transitions": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["to"],
              "properties": {
                "to": {"type": "string"},
                "event": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("workflow.schema.json", schemaJSON)

func validateSchema(raw string) error {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return err
	}
	return compiledSchema.Validate(doc)
}
