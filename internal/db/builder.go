package db

import "strings"

// IndexBuilder is a fluent builder for index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Text adds a full-text field.
func (b *IndexBuilder) Text(path, alias string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: alias, Type: IndexFieldText})
}

// Tag adds an exact-match tag field.
func (b *IndexBuilder) Tag(path, alias string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: alias, Type: IndexFieldTag})
}

// Numeric adds a numeric field.
func (b *IndexBuilder) Numeric(path, alias string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: alias, Type: IndexFieldNumeric})
}

// VectorHNSW adds an HNSW vector field.
func (b *IndexBuilder) VectorHNSW(path, alias string, dim int, distance DistanceMetric, m, efConstruct int) *IndexBuilder {
	return b.add(IndexField{
		Name:              path,
		Alias:             alias,
		Type:              IndexFieldVector,
		VectorAlgo:        VectorHNSW,
		VectorDim:         dim,
		VectorDistance:    distance,
		VectorM:           m,
		VectorEFConstruct: efConstruct,
	})
}

// VectorFlat adds a brute-force vector field.
func (b *IndexBuilder) VectorFlat(path, alias string, dim int, distance DistanceMetric) *IndexBuilder {
	return b.add(IndexField{
		Name:           path,
		Alias:          alias,
		Type:           IndexFieldVector,
		VectorAlgo:     VectorFlat,
		VectorDim:      dim,
		VectorDistance: distance,
	})
}

// Sortable marks the last added field SORTABLE.
func (b *IndexBuilder) Sortable() *IndexBuilder {
	if n := len(b.def.Fields); n > 0 {
		b.def.Fields[n-1].Sortable = true
	}
	return b
}

// Separator sets the tag separator of the last added field.
func (b *IndexBuilder) Separator(sep string) *IndexBuilder {
	if n := len(b.def.Fields); n > 0 {
		b.def.Fields[n-1].TagSeparator = sep
	}
	return b
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String returns a debug representation resembling FT.CREATE.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name, "ON", "JSON"}
	if len(idx.Prefixes) > 0 {
		parts = append(parts, "PREFIX")
		parts = append(parts, idx.Prefixes...)
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Name)
		if f.Alias != "" {
			parts = append(parts, "AS", f.Alias)
		}
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldNumeric:
			parts = append(parts, "NUMERIC")
		case IndexFieldText:
			parts = append(parts, "TEXT")
		case IndexFieldVector:
			parts = append(parts, "VECTOR", string(f.VectorAlgo))
		}
		if f.Sortable {
			parts = append(parts, "SORTABLE")
		}
	}
	return strings.Join(parts, " ")
}
