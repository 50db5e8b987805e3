package search

import "github.com/kailas-cloud/cvsearch/internal/domain/record"

// sanitize drops content and embedding from every record. Executors already
// project them out; this pass runs regardless.
func sanitize(records []record.Record) []record.Record {
	out := make([]record.Record, len(records))
	for i := range records {
		out[i] = records[i].Sanitized()
	}
	return out
}
