package record

// Stored document field names. Predicates, sort specs and store projections
// address records by these names.
const (
	FieldID         = "id"
	FieldContent    = "content"
	FieldEmbedding  = "embedding"
	FieldUploadDate = "uploadDate"
	FieldSkills     = "skills"
	FieldExperience = "experience"
	FieldJobTitles  = "jobTitles"
	FieldEducation  = "education"
	FieldContact    = "contact"
	FieldMetadata   = "metadata"

	// CustomPrefix addresses open-ended metadata keys, e.g. "metadata.location".
	CustomPrefix = "metadata."
)

// HeavyFields are never returned to clients.
var HeavyFields = []string{FieldContent, FieldEmbedding}
