package field

import (
	"github.com/PaesslerAG/jsonpath"
	"github.com/tidwall/gjson"

	rerrors "github.com/ironbee-oss/rulecore/errors"
)

// NewDynamicJSON builds a dynamic list field over a raw JSON document whose
// subkey is a gjson path expression (e.g. "user.name" or "items.0.id").
// This is the idiomatic shape for a request/response-body var: the body
// bytes are decoded lazily, once per VarFilter application, instead of
// eagerly materializing every possible path at TX start.
//
// A non-existent path yields an empty result list, not an error; a path
// whose value is JSON null yields one empty byte-string field. Callers that
// need ENOENT semantics should check the result length.
func NewDynamicJSON(name string, document []byte) *Field {
	return NewDynamicList(name, func(subkey string) ([]*Field, error) {
		if subkey == "" {
			return jsonResultToFields(name, gjson.ParseBytes(document))
		}
		result := gjson.GetBytes(document, subkey)
		return jsonResultToFields(subkey, result)
	})
}

func jsonResultToFields(name string, result gjson.Result) ([]*Field, error) {
	if !result.Exists() {
		return nil, nil
	}
	if result.IsArray() {
		var out []*Field
		for _, elem := range result.Array() {
			out = append(out, jsonResultToField(name, elem))
		}
		return out, nil
	}
	return []*Field{jsonResultToField(name, result)}, nil
}

func jsonResultToField(name string, result gjson.Result) *Field {
	switch result.Type {
	case gjson.Number:
		if result.Num == float64(int64(result.Num)) {
			return NewInt(name, int64(result.Num))
		}
		return NewFloat(name, result.Num)
	case gjson.True, gjson.False:
		return NewByteString(name, result.String())
	default:
		return NewByteString(name, result.String())
	}
}

// NewDynamicJSONPath builds a dynamic list field whose subkey is evaluated
// as a JSONPath expression (e.g. "$.store.book[0].title") against a
// pre-decoded document, for rules that need JSONPath's richer filter/
// wildcard syntax rather than gjson's lighter-weight dotted paths.
// jsonDocument must already be the result of encoding/json.Unmarshal into
// an any (map[string]any / []any / scalars), which is what jsonpath.Get
// operates over.
func NewDynamicJSONPath(name string, jsonDocument any) *Field {
	return NewDynamicList(name, func(subkey string) ([]*Field, error) {
		if subkey == "" {
			return nil, rerrors.EINVAL("Field.DynamicGet", "jsonpath subkey required")
		}
		value, err := jsonpath.Get(subkey, jsonDocument)
		if err != nil {
			return nil, rerrors.WrapOther("Field.DynamicGet", err)
		}
		return jsonValueToFields(name, value), nil
	})
}

func jsonValueToFields(name string, value any) []*Field {
	switch v := value.(type) {
	case []any:
		out := make([]*Field, 0, len(v))
		for _, elem := range v {
			out = append(out, jsonScalarToField(name, elem))
		}
		return out
	default:
		return []*Field{jsonScalarToField(name, v)}
	}
}

func jsonScalarToField(name string, value any) *Field {
	switch v := value.(type) {
	case float64:
		if v == float64(int64(v)) {
			return NewInt(name, int64(v))
		}
		return NewFloat(name, v)
	case string:
		return NewByteString(name, v)
	case bool:
		if v {
			return NewByteString(name, "true")
		}
		return NewByteString(name, "false")
	case nil:
		return NewByteString(name, "")
	default:
		return NewByteString(name, "")
	}
}
