package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/db"
	domrec "github.com/kailas-cloud/cvsearch/internal/domain/record"
)

// parseEntries converts projected search hits into sanitized records.
func (r *Repo) parseEntries(sr *db.SearchResult) ([]domrec.Record, error) {
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	out := make([]domrec.Record, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		rec, err := parseEntry(strings.TrimPrefix(e.Key, r.cfg.Prefix), e)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Key, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseEntry reads field values as rendered by the store: strings and
// numbers plain, arrays and objects as JSON.
func parseEntry(id string, e db.SearchEntry) (domrec.Record, error) {
	f := e.Fields
	if v := f[domrec.FieldID]; v != "" {
		id = v
	}

	var meta domrec.Metadata
	var err error
	if meta.Skills, err = parseList(f[domrec.FieldSkills]); err != nil {
		return domrec.Record{}, fmt.Errorf("skills: %w", err)
	}
	if meta.JobTitles, err = parseList(f[domrec.FieldJobTitles]); err != nil {
		return domrec.Record{}, fmt.Errorf("jobTitles: %w", err)
	}
	if meta.Education, err = parseList(f[domrec.FieldEducation]); err != nil {
		return domrec.Record{}, fmt.Errorf("education: %w", err)
	}

	exp, err := parseNumber(f[domrec.FieldExperience])
	if err != nil {
		return domrec.Record{}, fmt.Errorf("experience: %w", err)
	}
	meta.Experience = int(exp)

	millis, err := parseNumber(f[domrec.FieldUploadDate])
	if err != nil {
		return domrec.Record{}, fmt.Errorf("uploadDate: %w", err)
	}

	if raw := f[domrec.FieldContact]; raw != "" {
		var c struct {
			Email string `json:"email"`
			Phone string `json:"phone"`
		}
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return domrec.Record{}, fmt.Errorf("contact: %w", err)
		}
		meta.Contact = domrec.Contact{Email: c.Email, Phone: c.Phone}
	}

	if raw := f[domrec.FieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta.Custom); err != nil {
			return domrec.Record{}, fmt.Errorf("metadata: %w", err)
		}
	}

	uploaded := time.UnixMilli(int64(millis)).UTC()
	return domrec.Reconstruct(id, "", nil, uploaded, meta, e.Score), nil
}

// parseList accepts a JSON array or a single plain value.
func parseList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	if !strings.HasPrefix(raw, "[") {
		return []string{raw}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseNumber(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
