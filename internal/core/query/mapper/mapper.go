// Package mapper implements result mapping from driver rows to result sets
// and Go structs.
package mapper

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/satishbabariya/prisma-engine-go/internal/core/filter"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
)

// jsonTypeNames are driver-reported column types holding JSON documents.
var jsonTypeNames = map[string]bool{
	"JSON":  true,
	"JSONB": true,
}

var valueType = reflect.TypeOf((*filter.Value)(nil)).Elem()

// ResultMapper maps database results to rows and Go structs.
type ResultMapper struct{}

// NewResultMapper creates a new result mapper.
func NewResultMapper() *ResultMapper {
	return &ResultMapper{}
}

// ScanRows reads every row. Columns reported as JSON by the driver, or named
// in jsonFields, are decoded to filter.Value; SQL NULL stays nil so a stored
// JSON null (filter.Null) is distinguishable from a database NULL.
func (m *ResultMapper) ScanRows(rows *sql.Rows, jsonFields []string) ([]string, []domain.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get columns: %w", err)
	}
	isJSON := make([]bool, len(columns))
	declared := make(map[string]bool, len(jsonFields))
	for _, f := range jsonFields {
		declared[f] = true
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get column types: %w", err)
	}
	for i, col := range columns {
		isJSON[i] = declared[col]
		if i < len(types) && types[i] != nil && jsonTypeNames[strings.ToUpper(types[i].DatabaseTypeName())] {
			isJSON[i] = true
		}
	}

	var result []domain.Row
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(domain.Row, len(columns))
		for i, col := range columns {
			v, err := m.convert(values[i], isJSON[i])
			if err != nil {
				return nil, nil, fmt.Errorf("column %s: %w", col, err)
			}
			row[col] = v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return columns, result, nil
}

func (m *ResultMapper) convert(val any, isJSON bool) (any, error) {
	if !isJSON {
		// Text columns come back as bytes from most drivers.
		if b, ok := val.([]byte); ok {
			return string(b), nil
		}
		return val, nil
	}
	var text []byte
	switch t := val.(type) {
	case nil:
		return nil, nil
	case []byte:
		text = t
	case string:
		text = []byte(t)
	default:
		// Numbers and booleans extracted from a JSON column.
		return filter.FromGo(t)
	}
	v, err := filter.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return v, nil
}

// MapToStruct copies row into dest, a pointer to a struct. Fields match
// columns by their db tag, otherwise by case-insensitive field name.
func (m *ResultMapper) MapToStruct(row domain.Row, dest any) error {
	return m.decode(row, dest)
}

// MapToStructSlice copies rows into dest, a pointer to a slice of structs
// or struct pointers.
func (m *ResultMapper) MapToStructSlice(rows []domain.Row, dest any) error {
	return m.decode(rows, dest)
}

func (m *ResultMapper) decode(input, dest any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(jsonValueHook, timeHook),
		Result:           dest,
	})
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("failed to map rows: %w", err)
	}
	return nil
}

var rawMessageType = reflect.TypeOf(json.RawMessage(nil))

// jsonValueHook hands filter.Value fields the decoded value as-is. String
// fields get a JSON string's content or a composite document's JSON text;
// every other target receives the plain Go form of the value.
func jsonValueHook(from, to reflect.Value) (any, error) {
	data := from.Interface()
	v, ok := data.(filter.Value)
	if !ok {
		return data, nil
	}
	target := to.Type()
	switch {
	case target == valueType || reflect.TypeOf(v).AssignableTo(target):
		return v, nil
	case target == rawMessageType:
		return filter.Encode(v)
	case target.Kind() == reflect.String:
		if str, ok := v.(filter.String); ok {
			return string(str), nil
		}
		text, err := filter.Encode(v)
		return string(text), err
	}
	return filter.ToGo(v), nil
}

// timeHook parses driver timestamp text into time.Time fields.
func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	switch t := data.(type) {
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	}
	return data, nil
}

// timeLayouts are the text forms drivers return timestamps in.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
