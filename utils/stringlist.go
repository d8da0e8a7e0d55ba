package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StringList is a request-boundary list type. Clients send arrays either as JSON
// arrays (of strings or numbers), as a JSON-encoded array inside a string, or as a
// comma separated string. All forms decode to a trimmed []string without empties.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}

	switch b[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("string list: %w", err)
		}
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			v, err := scalarString(item)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		*l = compact(out)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("string list: %w", err)
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "[") {
			return l.UnmarshalJSON([]byte(s))
		}
		*l = compact(strings.Split(s, ","))
		return nil
	default:
		v, err := scalarString(b)
		if err != nil {
			return err
		}
		*l = compact([]string{v})
		return nil
	}
}

// JSON renders the list as a JSON array ("[]" for an empty list).
func (l StringList) JSON() []byte {
	if l == nil {
		l = StringList{}
	}
	b, _ := json.Marshal([]string(l))
	return b
}

// Contains reports whether v is in the list.
func (l StringList) Contains(v string) bool {
	for _, s := range l {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStringList decodes a stored JSON column; empty input yields an empty list.
func ParseStringList(b []byte) (StringList, error) {
	var l StringList
	if len(bytes.TrimSpace(b)) == 0 {
		return l, nil
	}
	if err := l.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return l, nil
}

// SplitList reads a list from a query parameter: a JSON array or comma separated values.
func SplitList(s string) StringList {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var l StringList
		if err := l.UnmarshalJSON([]byte(s)); err == nil {
			return l
		}
	}
	return compact(strings.Split(s, ","))
}

func scalarString(b json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("string list item: %w", err)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("string list item: unsupported value %s", string(b))
	}
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
