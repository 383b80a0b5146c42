package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StripToBraces keeps text from the first '{' to the last '}' inclusive.
// Text without such a pair is returned unchanged.
func StripToBraces(text string) string {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first != -1 && last != -1 && first < last {
		return text[first : last+1]
	}
	return text
}

// Truncate shortens s to at most n bytes for logging.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

// String decodes a JSON string, number, bool or null. Arrays are joined
// with " ~ " so a model that returns a list still yields one record per element.
type String string

func (s *String) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = String(v)
	case '[':
		var items []String
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, string(item))
		}
		*s = String(strings.Join(parts, " ~ "))
	case '{':
		return fmt.Errorf("expected string, got object")
	default:
		*s = String(data)
	}
	return nil
}

// Number decodes a JSON number or a numeric string. Anything unparsable becomes 0.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*n = Number(ParseLeadingFloat(v))
		return nil
	}

	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("expected number, got %c", data[0])
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// ParseLeadingFloat parses strings such as "4", " 2.5 ", "3 points" or "2/5"
// and returns the leading number, or 0.
func ParseLeadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}
