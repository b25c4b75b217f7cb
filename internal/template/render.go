package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Data maps placeholder keys to their values. Values are expected to be
// strings, numbers or booleans; anything else is formatted with %v.
type Data map[string]any

var placeholder = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Render substitutes {{key}} tokens in tmpl with values from data. Keys are
// trimmed of surrounding whitespace before lookup. Defined values substitute
// their string form, including zero values such as 0 and false; undefined
// keys leave the original token untouched. The output is not re-scanned, so
// substituted values cannot introduce further tokens.
func Render(tmpl string, data Data) string {
	if tmpl == "" {
		return ""
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(token string) string {
		key := strings.TrimSpace(token[2 : len(token)-2])
		val, ok := data[key]
		if !ok {
			return token
		}
		return format(val)
	})
}

func format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
