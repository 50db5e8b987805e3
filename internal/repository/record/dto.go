package record

import (
	"time"

	domrec "github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// recordDoc is the stored JSON layout. uploadDate is Unix milliseconds so
// range filters and sorting work on a plain number. Custom metadata keys sit
// directly under "metadata".
type recordDoc struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Embedding  []float32      `json:"embedding,omitempty"`
	UploadDate int64          `json:"uploadDate"`
	Skills     []string       `json:"skills"`
	Experience int            `json:"experience"`
	JobTitles  []string       `json:"jobTitles"`
	Education  []string       `json:"education"`
	Contact    *contactDoc    `json:"contact,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type contactDoc struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func buildDoc(r *domrec.Record) recordDoc {
	m := r.Metadata()
	d := recordDoc{
		ID:         r.ID(),
		Content:    r.Content(),
		Embedding:  r.Embedding(),
		UploadDate: r.UploadDate().UnixMilli(),
		Skills:     nonNil(m.Skills),
		Experience: m.Experience,
		JobTitles:  nonNil(m.JobTitles),
		Education:  nonNil(m.Education),
	}
	if m.Contact != (domrec.Contact{}) {
		d.Contact = &contactDoc{Email: m.Contact.Email, Phone: m.Contact.Phone}
	}
	if len(m.Custom) > 0 {
		d.Metadata = make(map[string]any, len(m.Custom))
		for k, v := range m.Custom {
			d.Metadata[k] = v
		}
	}
	return d
}

func (d *recordDoc) toRecord(score float64) domrec.Record {
	meta := domrec.Metadata{
		Skills:     d.Skills,
		Experience: d.Experience,
		JobTitles:  d.JobTitles,
		Education:  d.Education,
		Custom:     d.Metadata,
	}
	if d.Contact != nil {
		meta.Contact = domrec.Contact{Email: d.Contact.Email, Phone: d.Contact.Phone}
	}
	return domrec.Reconstruct(d.ID, d.Content, d.Embedding, time.UnixMilli(d.UploadDate).UTC(), meta, score)
}

// Array fields are always stored as arrays so membership filters see an
// empty list instead of null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
