package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/JonMunkholm/shipbroker/internal/store"
)

// BuildRecord flattens a validated draft into the row written to the
// definition's table. Inactive fields contribute empty values.
func BuildRecord(def *Definition, v *Validator, d Draft) (store.Record, error) {
	rec := make(store.Record, len(def.Record.Columns)+1)

	value := func(name string) string {
		spec, ok := def.Field(name)
		if !ok || !v.Active(d, spec) {
			return ""
		}
		return d.text(name)
	}

	for _, c := range def.Record.Columns {
		raw := value(c.Field)
		switch c.As {
		case "", "text":
			rec[c.Column] = raw
		case "nullable":
			rec[c.Column] = nullable(raw)
		case "lower":
			rec[c.Column] = strings.ToLower(raw)
		case "float":
			if n, ok := ParseNumber(raw); ok {
				rec[c.Column] = n
			} else {
				rec[c.Column] = nil
			}
		case "int":
			n, ok := ParseNumber(raw)
			if !ok {
				rec[c.Column] = nil
				break
			}
			// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
			if math.IsNaN(n) || n < math.MinInt64 || n >= math.MaxInt64 {
				return nil, fmt.Errorf("column %s: %v is out of integer range", c.Column, n)
			}
			rec[c.Column] = int64(n)
		case "date":
			if t, ok := ParseDate(raw); ok {
				rec[c.Column] = t
			} else {
				rec[c.Column] = nil
			}
		case "null":
			rec[c.Column] = nil
		default:
			return nil, fmt.Errorf("column %s: unknown conversion %q", c.Column, c.As)
		}
	}

	if n := def.Record.Notes; n != nil {
		parts := make([]string, 0, len(n.Items))
		for _, item := range n.Items {
			vals := make([]string, len(item.Fields))
			for i, f := range item.Fields {
				vals[i] = value(f)
			}
			sep := item.Sep
			if sep == "" {
				sep = " "
			}
			parts = append(parts, item.Label+": "+strings.Join(vals, sep))
		}
		rec[n.Column] = strings.Join(parts, ", ")
	}

	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
