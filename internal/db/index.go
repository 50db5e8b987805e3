package db

import (
	"errors"
	"strconv"
	"strings"
)

// DistanceMetric used by vector similarity queries. Record similarity is
// reported as 1 - cosine distance, so cosine is the only metric stores accept.
type DistanceMetric string

// DistanceCosine is cosine distance.
const DistanceCosine DistanceMetric = "COSINE"

// VectorAlgorithm selects the vector indexing algorithm.
type VectorAlgorithm string

const (
	// VectorHNSW uses the HNSW algorithm.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat uses brute force.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates supported index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is an exact-match tag field.
	IndexFieldTag
	// IndexFieldText is a full-text field.
	IndexFieldText
	// IndexFieldVector is a vector field.
	IndexFieldVector
)

// IndexField describes a single field in an index schema.
type IndexField struct {
	Name     string // JSONPath for JSON storage, e.g. $.skills[*]
	Alias    string // AS alias; queries address the field by Key()
	Type     IndexFieldType
	Sortable bool

	// TAG options
	TagSeparator string

	// VECTOR options
	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int // HNSW M: max edges per node
	VectorEFConstruct int // HNSW EF_CONSTRUCTION
}

// Key returns the name queries use: the alias when set, the name otherwise.
func (f *IndexField) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// JSONPath returns the single-value path of the field: "$.skills[*]" becomes "$.skills".
// Non-path names are treated as top-level keys.
func (f *IndexField) JSONPath() string {
	p := strings.TrimSuffix(f.Name, "[*]")
	if strings.HasPrefix(p, "$") {
		return p
	}
	return "$." + p
}

// IndexDefinition describes an index over JSON records stored under Prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Field looks up a field by its query key.
func (idx *IndexDefinition) Field(key string) (IndexField, bool) {
	for i := range idx.Fields {
		if idx.Fields[i].Key() == key {
			return idx.Fields[i], true
		}
	}
	return IndexField{}, false
}

// FieldsOfType returns the fields with the given type, in schema order.
func (idx *IndexDefinition) FieldsOfType(t IndexFieldType) []IndexField {
	var out []IndexField
	for i := range idx.Fields {
		if idx.Fields[i].Type == t {
			out = append(out, idx.Fields[i])
		}
	}
	return out
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		key := f.Key()
		if seen[key] {
			return errors.New("duplicate field name: " + key)
		}
		seen[key] = true

		if f.Type == IndexFieldVector && f.VectorDim <= 0 {
			return errors.New("vector field requires positive DIM")
		}
		if f.Sortable && f.Type == IndexFieldVector {
			return errors.New("vector field cannot be sortable")
		}
		if f.Type == IndexFieldVector && f.VectorDistance != "" && f.VectorDistance != DistanceCosine {
			return errors.New("unsupported distance metric: " + string(f.VectorDistance))
		}
	}

	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}

// FieldKey maps a logical record field to its index key: "metadata.location"
// becomes "metadata_location". Index builders and query renderers share it.
func FieldKey(field string) string {
	return strings.ReplaceAll(field, ".", "_")
}
