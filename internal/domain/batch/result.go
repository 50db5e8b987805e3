package batch

// ItemStatus is the processing outcome of a single ingested record.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of ingesting one record.
type Result struct {
	id       string
	status   ItemStatus
	embedded bool
	err      error
}

// NewOK creates a successful result. embedded is false when the record was
// stored without a vector and is reachable by text search only.
func NewOK(id string, embedded bool) Result {
	return Result{id: id, status: StatusOK, embedded: embedded}
}

// NewError creates a failed result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the record identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Embedded reports whether the stored record carries an embedding.
func (r Result) Embedded() bool { return r.embedded }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary counts outcomes across a batch.
type Summary struct {
	Succeeded  int
	Failed     int
	Unembedded int
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.status {
		case StatusOK:
			s.Succeeded++
			if !r.embedded {
				s.Unembedded++
			}
		case StatusError:
			s.Failed++
		}
	}
	return s
}
