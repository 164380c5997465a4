package querycache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key addresses a cached query: a resource name followed by its
// parameters. Keys compare and prefix-match part by part, so
// Key{"complaint"} matches Key{"complaint", "7"} but not Key{"complaints"}.
type Key []string

// NewKey builds a key from a resource name and parameters. Strings and
// numbers are used as-is; structured values are JSON encoded, which sorts
// map keys and keeps the encoding deterministic.
func NewKey(resource string, params ...any) Key {
	k := make(Key, 0, len(params)+1)
	k = append(k, resource)
	for _, p := range params {
		k = append(k, encodeParam(p))
	}
	return k
}

func encodeParam(p any) string {
	switch v := p.(type) {
	case nil:
		return "null"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return fmt.Sprint(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// String joins the parts with "/", the form used in logs.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Resource returns the first part of the key.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether prefix matches the leading parts of k. An empty
// prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ParseKey splits a "/" separated key, the inverse of String for keys whose
// parts contain no slash.
func ParseKey(s string) Key {
	s = strings.Trim(s, "/")
	if s == "" {
		return Key{}
	}
	return Key(strings.Split(s, "/"))
}

// id is the map key of an entry. Parts are length prefixed so that no two
// distinct keys collide.
func (k Key) id() string {
	var b strings.Builder
	for _, part := range k {
		fmt.Fprintf(&b, "%d:%s;", len(part), part)
	}
	return b.String()
}
