// Package bind copies the allow-listed fields of a submitted payload onto the
// object a step is editing. Fields outside the allow-list are dropped silently.
package bind

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

// Values is a submitted payload normalized to strings, nested maps and
// slices, keyed by the json field names of the bound model.
type Values map[string]any

// MaxRows bounds the row index accepted from a form. Rows at or above it are
// dropped.
const MaxRows = 500

// FromForm turns form values into Values. Keys of the form "rows[0][amount]"
// or "rows[0].amount" become a slice of row maps in which a row keeps its
// submitted position, gaps being filled with blank rows; keys of the form
// "address[town]" become a nested map; keys ending in "[]" become a slice of
// strings.
func FromForm(form url.Values) Values {
	out := Values{}
	rows := map[string]map[int]map[string]any{}
	for key, vals := range form {
		if len(vals) == 0 {
			continue
		}
		if strings.HasSuffix(key, "[]") {
			list := make([]any, 0, len(vals))
			for _, v := range vals {
				list = append(list, v)
			}
			out[strings.TrimSuffix(key, "[]")] = list
			continue
		}
		if name, idx, field, ok := splitIndexed(key); ok {
			if idx >= MaxRows {
				continue
			}
			if rows[name] == nil {
				rows[name] = map[int]map[string]any{}
			}
			if rows[name][idx] == nil {
				rows[name][idx] = map[string]any{}
			}
			rows[name][idx][field] = vals[0]
			continue
		}
		if name, field, ok := splitNested(key); ok {
			nested, _ := out[name].(map[string]any)
			if nested == nil {
				nested = map[string]any{}
				out[name] = nested
			}
			nested[field] = vals[0]
			continue
		}
		out[key] = vals[0]
	}
	for name, byIndex := range rows {
		last := 0
		for i := range byIndex {
			last = max(last, i)
		}
		list := make([]any, last+1)
		for i := range list {
			if row, ok := byIndex[i]; ok {
				list[i] = row
			} else {
				list[i] = map[string]any{}
			}
		}
		out[name] = list
	}
	return out
}

// splitNested parses "name[field]" where field is not a number.
func splitNested(key string) (name, field string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	field = key[open+1 : len(key)-1]
	if field == "" || strings.ContainsAny(field, "[]") {
		return "", "", false
	}
	if _, err := strconv.Atoi(field); err == nil {
		return "", "", false
	}
	return key[:open], field, true
}

// splitIndexed parses "name[3][field]" and "name[3].field".
func splitIndexed(key string) (name string, idx int, field string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return "", 0, "", false
	}
	close := strings.IndexByte(key[open:], ']')
	if close < 0 {
		return "", 0, "", false
	}
	close += open
	idx, err := strconv.Atoi(key[open+1 : close])
	if err != nil || idx < 0 {
		return "", 0, "", false
	}
	rest := key[close+1:]
	switch {
	case strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]"):
		field = rest[1 : len(rest)-1]
	case strings.HasPrefix(rest, "."):
		field = rest[1:]
	default:
		return "", 0, "", false
	}
	if field == "" {
		return "", 0, "", false
	}
	return key[:open], idx, field, true
}

// FromJSON decodes a JSON object body into Values, turning every scalar into
// its string form so JSON and form submissions bind identically.
func FromJSON(r io.Reader) (Values, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return Values{}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	out := Values{}
	for k, v := range raw {
		out[k] = normalize(v)
	}
	return out, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	default:
		return fmt.Sprint(t)
	}
}

// Only returns the subset of v whose keys are in allow.
func (v Values) Only(allow []string) Values {
	out := Values{}
	for _, k := range allow {
		if val, ok := v[k]; ok {
			out[k] = val
		}
	}
	return out
}

// String returns a top-level scalar, or "".
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Bind decodes the allow-listed fields of values onto dst, a pointer to a
// struct tagged with json names. Slice fields are replaced, not merged, so a
// positional list submitted with fewer rows shrinks.
func Bind(dst any, values Values, allow []string) error {
	if rv := reflect.ValueOf(dst); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return dErrors.New(dErrors.CodeInternal, "bind target must be a non-nil pointer")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           dst,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			trimStrings,
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build decoder")
	}
	if err := decoder.Decode(map[string]any(values.Only(allow))); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "submitted fields could not be read")
	}
	return nil
}

func trimStrings(from reflect.Type, _ reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	return strings.TrimSpace(data.(string)), nil
}
