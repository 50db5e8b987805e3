package ordering

import (
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/cvsearch/internal/domain/record"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		sortBy    string
		order     string
		forVector bool
		want      Spec
	}{
		{"relevance text desc", "relevance", "desc", false, Spec{Key: Relevance, ByScore: true, Descending: true}},
		{"relevance text asc", "relevance", "asc", false, Spec{Key: Relevance, ByScore: true}},
		{"relevance vector is natural", "relevance", "asc", true, Spec{Key: Relevance, ByScore: true, Descending: true, Natural: true}},
		{"default key", "", "", false, Spec{Key: Relevance, ByScore: true, Descending: true}},
		{"upload date asc", "uploadDate", "asc", true, Spec{Key: UploadDate, Field: "uploadDate"}},
		{"experience desc", "experience", "desc", false, Spec{Key: Experience, Field: "experience", Descending: true}},
		{"ASC uppercase", "experience", "ASC", false, Spec{Key: Experience, Field: "experience"}},
		{"unknown order is desc", "experience", "sideways", false, Spec{Key: Experience, Field: "experience", Descending: true}},
		{"unknown key falls back", "salary", "asc", false, Spec{Key: UploadDate, Field: "uploadDate", Descending: true}},
		{"unknown key on vector", "salary", "asc", true, Spec{Key: UploadDate, Field: "uploadDate", Descending: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.sortBy, tc.order, tc.forVector); got != tc.want {
				t.Errorf("Resolve(%q, %q, %v) = %+v, want %+v", tc.sortBy, tc.order, tc.forVector, got, tc.want)
			}
		})
	}
}

func TestIsKnownKey(t *testing.T) {
	for _, k := range []string{"relevance", "uploadDate", "experience"} {
		if !IsKnownKey(k) {
			t.Errorf("%q must be known", k)
		}
	}
	if IsKnownKey("salary") {
		t.Error("salary must be unknown")
	}
}

func TestLess_TieBreakByID(t *testing.T) {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, exp int, score float64) record.Record {
		return record.Reconstruct(id, "", nil, day, record.Metadata{Experience: exp}, score)
	}
	recs := []record.Record{mk("c", 3, 0.5), mk("a", 3, 0.5), mk("b", 5, 0.9), mk("d", 1, 0.1)}

	spec := Resolve("experience", "desc", false)
	slices.SortFunc(recs, func(x, y record.Record) int {
		if spec.Less(&x, &y) {
			return -1
		}
		if spec.Less(&y, &x) {
			return 1
		}
		return 0
	})

	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID())
	}
	if want := []string{"b", "a", "c", "d"}; !slices.Equal(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}
}

func TestLess_ByScore(t *testing.T) {
	day := time.Now()
	a := record.Reconstruct("a", "", nil, day, record.Metadata{}, 0.2)
	b := record.Reconstruct("b", "", nil, day, record.Metadata{}, 0.8)
	spec := Resolve("relevance", "desc", false)
	if !spec.Less(&b, &a) {
		t.Error("higher score must come first in desc")
	}
}
