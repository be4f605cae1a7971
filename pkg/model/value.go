package model

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

// codec is the JSON configuration used for persisted records and property values.
//
// Map keys are sorted so that encodings are deterministic, and numbers are
// kept in their textual form.
var codec = jsoniter.Config{
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// EncodeValue yields the JSON encoding of a property value.
//
// Supported values are strings, booleans, numbers (including json.Number), nil and
// arrays of those.
func EncodeValue(v interface{}) (string, error) {
	if v == nil {
		return "null", nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Struct, reflect.Ptr, reflect.Chan, reflect.Func:
		return "", fmt.Errorf("unsupported property value type %T", v)
	}
	return codec.MarshalToString(v)
}

// DecodeValue decodes a JSON encoded property value. Numbers are returned as json.Number.
func DecodeValue(raw string) (interface{}, error) {
	var v interface{}
	if err := codec.UnmarshalFromString(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid property value %q: %w", raw, err)
	}
	return v, nil
}
