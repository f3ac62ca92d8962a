package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ToYAML renders any JSON-marshalable value as deterministic YAML: two-space
// indent, sorted object keys, quoted strings, floats with 4 decimals. This is
// a write-only view; it is not guaranteed to round-trip exotic strings.
func ToYAML(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return "", err
	}

	var b strings.Builder
	writeYAML(&b, decoded, 0)

	return b.String(), nil
}

func writeYAML(b *strings.Builder, value any, indent int) {
	pad := strings.Repeat(" ", indent)

	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if isComposite(v[k]) {
				fmt.Fprintf(b, "%s%s:\n", pad, k)
				writeYAML(b, v[k], indent+2)
			} else {
				fmt.Fprintf(b, "%s%s: %s\n", pad, k, scalarYAML(v[k]))
			}
		}
	case []any:
		for _, item := range v {
			if isComposite(item) {
				fmt.Fprintf(b, "%s-\n", pad)
				writeYAML(b, item, indent+2)
			} else {
				fmt.Fprintf(b, "%s- %s\n", pad, scalarYAML(item))
			}
		}
	default:
		fmt.Fprintf(b, "%s%s\n", pad, scalarYAML(v))
	}
}

func isComposite(value any) bool {
	switch value.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

func scalarYAML(value any) string {
	switch v := value.(type) {
	case string:
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	case json.Number:
		text := v.String()
		if strings.ContainsAny(text, ".eE") {
			f, err := v.Float64()
			if err == nil {
				return fmt.Sprintf("%.4f", f)
			}
		}

		return text
	case bool:
		if v {
			return "true"
		}

		return "false"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}
