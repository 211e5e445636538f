package input

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// QuerySchema is the JSON Schema of one logical query document. Filters
// are checked structurally by the decoder.
const QuerySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["operation", "model"],
  "additionalProperties": false,
  "definitions": {
    "name": {"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$"},
    "names": {"type": "array", "items": {"$ref": "#/definitions/name"}},
    "order": {
      "type": "object",
      "minProperties": 1,
      "maxProperties": 1,
      "propertyNames": {"$ref": "#/definitions/name"},
      "additionalProperties": {"enum": ["asc", "desc"]}
    }
  },
  "properties": {
    "operation": {"enum": ["find", "findMany", "create", "update", "delete", "upsert"]},
    "model": {"$ref": "#/definitions/name"},
    "filter": {"type": "object"},
    "data": {"type": "object"},
    "update": {"type": "object"},
    "conflictKeys": {"$ref": "#/definitions/names"},
    "select": {"$ref": "#/definitions/names"},
    "orderBy": {
      "oneOf": [
        {"$ref": "#/definitions/order"},
        {"type": "array", "items": {"$ref": "#/definitions/order"}}
      ]
    },
    "take": {"type": "integer", "minimum": 0},
    "skip": {"type": "integer", "minimum": 0},
    "jsonFields": {"$ref": "#/definitions/names"}
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(QuerySchema))
})

// validateDocument checks data against QuerySchema.
func validateDocument(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("invalid query schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return qerr.Validation("query is not valid JSON: %v", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return qerr.Validation("query does not match the schema: %s", strings.Join(errs, "; "))
	}
	return nil
}
