// Package mode defines the requested search strategy and the method that answered.
package mode

import (
	"fmt"
	"strings"
)

// SearchType is the strategy a client asks for.
type SearchType uint8

// Search types. The zero value is Auto.
const (
	Auto SearchType = iota
	Vector
	Text
)

// ParseSearchType accepts auto, vector or text (case-insensitive). Empty means Auto.
func ParseSearchType(s string) (SearchType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "vector":
		return Vector, nil
	case "text":
		return Text, nil
	}
	return Auto, fmt.Errorf("invalid search type %q (want auto, vector or text)", s)
}

func (t SearchType) String() string {
	switch t {
	case Auto:
		return "auto"
	case Vector:
		return "vector"
	case Text:
		return "text"
	}
	return fmt.Sprintf("SearchType(%d)", uint8(t))
}

// AllowsVector reports whether the vector path may be attempted.
func (t SearchType) AllowsVector() bool { return t == Auto || t == Vector }

// AllowsFallback reports whether a vector failure may degrade to text.
func (t SearchType) AllowsFallback() bool { return t == Auto }

// MarshalText implements encoding.TextMarshaler.
func (t SearchType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SearchType) UnmarshalText(b []byte) error {
	v, err := ParseSearchType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Method is the retrieval strategy that produced a response.
type Method uint8

// Methods.
const (
	MethodVector Method = iota + 1
	MethodText
)

func (m Method) String() string {
	switch m {
	case MethodVector:
		return "vector"
	case MethodText:
		return "text"
	}
	return "none"
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }
