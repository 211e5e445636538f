// Package input decodes logical queries from JSON documents.
//
// A query document looks like:
//
//	{
//	  "operation": "findMany",
//	  "model": "User",
//	  "filter": {
//	    "OR": [
//	      {"email": {"endsWith": "@example.com"}},
//	      {"meta": {"path": ["tags"], "array_contains": ["admin"]}},
//	      {"meta": {"equals": {"$null": "DbNull"}}}
//	    ]
//	  },
//	  "orderBy": [{"id": "desc"}],
//	  "take": 10,
//	  "jsonFields": ["meta"]
//	}
//
// An object whose only member is "$null" stands for a null kind: JsonNull,
// DbNull or AnyNull.
package input

import (
	"fmt"
	"strconv"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

const nullMarker = "$null"

// Decode parses one query document.
func Decode(data []byte) (*domain.Query, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	v, err := filter.Decode(data)
	if err != nil {
		return nil, qerr.Validation("%v", err)
	}
	doc, ok := v.(filter.Object)
	if !ok {
		return nil, qerr.Validation("query must be a JSON object")
	}
	return decodeQuery(doc)
}

// DecodeBatch parses a JSON array of query documents.
func DecodeBatch(data []byte) ([]*domain.Query, error) {
	v, err := filter.Decode(data)
	if err != nil {
		return nil, qerr.Validation("%v", err)
	}
	arr, ok := v.(filter.Array)
	if !ok {
		return nil, qerr.Validation("batch must be a JSON array of queries")
	}
	queries := make([]*domain.Query, 0, len(arr))
	for i, elem := range arr {
		raw, err := filter.Encode(elem)
		if err != nil {
			return nil, qerr.Validation("query %d: %v", i, err)
		}
		q, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func decodeQuery(doc filter.Object) (*domain.Query, error) {
	q := &domain.Query{}
	for _, m := range doc {
		var err error
		switch m.Key {
		case "operation":
			q.Operation = domain.Operation(m.Value.(filter.String))
		case "model":
			q.Model = string(m.Value.(filter.String))
		case "filter":
			q.Filter, err = decodeFilter(m.Value.(filter.Object))
		case "data":
			q.Data, err = decodeData(m.Value.(filter.Object))
		case "update":
			q.Update, err = decodeData(m.Value.(filter.Object))
		case "conflictKeys":
			q.ConflictKeys = names(m.Value)
		case "select":
			q.Select = names(m.Value)
		case "jsonFields":
			q.JSONFields = names(m.Value)
		case "orderBy":
			q.OrderBy = decodeOrder(m.Value)
		case "take":
			q.Take, err = integer(m.Key, m.Value)
		case "skip":
			q.Skip, err = integer(m.Key, m.Value)
		}
		if err != nil {
			return nil, err
		}
	}
	return q, nil
}

// names converts a schema-checked array of names.
func names(v filter.Value) []string {
	arr := v.(filter.Array)
	out := make([]string, len(arr))
	for i, e := range arr {
		out[i] = string(e.(filter.String))
	}
	return out
}

func integer(name string, v filter.Value) (int, error) {
	n, err := strconv.Atoi(string(v.(filter.Number)))
	if err != nil {
		return 0, qerr.Validation("%s must be an integer, got %s", name, string(v.(filter.Number)))
	}
	return n, nil
}

func decodeOrder(v filter.Value) []domain.OrderBy {
	var objs []filter.Object
	switch t := v.(type) {
	case filter.Object:
		objs = []filter.Object{t}
	case filter.Array:
		for _, e := range t {
			objs = append(objs, e.(filter.Object))
		}
	}
	out := make([]domain.OrderBy, 0, len(objs))
	for _, o := range objs {
		for _, m := range o {
			out = append(out, domain.OrderBy{Field: m.Key, Desc: m.Value == filter.String("desc")})
		}
	}
	return out
}

func decodeData(obj filter.Object) (domain.Data, error) {
	d := make(domain.Data, len(obj))
	for _, m := range obj {
		if _, dup := d[m.Key]; dup {
			return nil, qerr.Validation("field %q is set twice", m.Key)
		}
		op, err := operand(m.Value)
		if err != nil {
			return nil, err
		}
		d[m.Key] = op
	}
	return d, nil
}

// operand returns the null kind a marker object stands for, or v itself.
func operand(v filter.Value) (filter.Operand, error) {
	obj, ok := v.(filter.Object)
	if !ok || len(obj) != 1 || obj[0].Key != nullMarker {
		return v, nil
	}
	name, ok := obj[0].Value.(filter.String)
	if !ok {
		return nil, qerr.Validation("%s must name a null kind", nullMarker)
	}
	kind, ok := filter.ParseNullKind(string(name))
	if !ok {
		return nil, qerr.Validation("unknown null kind %q", string(name))
	}
	return kind, nil
}
