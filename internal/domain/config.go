package domain

// VectorConfig holds vectorization settings shared by index bootstrap and embedders.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DocumentInstruction string
	QueryInstruction    string
	HNSWM               int
	HNSWEFConstruction  int
}

// DefaultVectorConfig matches text-embedding-3-small.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:              "text-embedding-3-small",
		Dimensions:         1536,
		HNSWM:              16,
		HNSWEFConstruction: 200,
	}
}
