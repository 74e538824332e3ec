package backend

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// RenderSQL renders a compiled statement for diagnostics. With inline=true
// every placeholder is replaced by an escaped literal; otherwise the
// parameterized text is returned with the argument list appended after a
// `%` separator.
func RenderSQL(sql string, args []any, inline bool) (string, error) {
	if inline {
		return Inline(sql, args)
	}
	if args == nil {
		args = []any{}
	}
	enc, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("render args: %w", err)
	}
	return sql + " % " + string(enc), nil
}

// Inline substitutes $N placeholders with literal values. The result is for
// human eyes and EXPLAIN only; regular execution stays parameterized.
func Inline(sql string, args []any) (string, error) {
	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(sql, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil || n < 1 || n > len(args) {
			if firstErr == nil {
				firstErr = fmt.Errorf("placeholder %s out of range (have %d args)", m, len(args))
			}
			return m
		}
		lit, err := renderLiteral(args[n-1])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		return lit
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func renderLiteral(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return quoteLiteral(v), nil
	case time.Time:
		return quoteLiteral(v.Format(time.RFC3339Nano)), nil
	default:
		// Structured arguments (slices, maps) render as JSON text.
		enc, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("render literal %T: %w", v, err)
		}
		return quoteLiteral(string(enc)), nil
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
