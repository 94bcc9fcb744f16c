package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexNumber accepts a JSON number or a display string such as "24ms" or
// "3.2 MB"; only the leading numeric part is kept.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	if data[0] != '"' {
		var value float64
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*n = flexNumber(value)
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := leadingNumber(raw)
	if err != nil {
		return err
	}
	*n = flexNumber(value)
	return nil
}

func leadingNumber(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	end := 0
	for end < len(trimmed) {
		ch := trimmed[end]
		if (ch >= '0' && ch <= '9') || ch == '.' || (end == 0 && (ch == '-' || ch == '+')) {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, nil
	}

	value, err := strconv.ParseFloat(trimmed[:end], 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric value %q: %w", raw, err)
	}
	return value, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = flexString(raw)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*s = flexString(number.String())
	return nil
}
