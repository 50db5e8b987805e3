package record

import "time"

// Draft is an ingestion input: a record before id assignment and embedding.
type Draft struct {
	ID         string
	Content    string
	UploadDate time.Time
	Metadata   Metadata
}
