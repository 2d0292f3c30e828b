package storage

import (
	"testing"

	"github.com/octofhir/fhircore/internal/search"
)

func TestTableName(t *testing.T) {
	cases := map[string]string{
		"Patient":           "patient",
		"Observation":       "observation",
		"MedicationRequest": "medication_request",
		"AllergyIntolerance": "allergy_intolerance",
	}
	for rt, want := range cases {
		if got := tableName(rt); got != want {
			t.Errorf("tableName(%q) = %q, want %q", rt, got, want)
		}
	}
}

func TestOrderByClauseDefault(t *testing.T) {
	if got := orderByClause(nil); got != "last_updated DESC" {
		t.Errorf("orderByClause(nil) = %q, want default", got)
	}
}

func TestOrderByClauseSpecialColumns(t *testing.T) {
	got := orderByClause([]search.SortField{{Name: "_id"}, {Name: "_lastUpdated", Descending: true}})
	want := "id ASC, last_updated DESC"
	if got != want {
		t.Errorf("orderByClause = %q, want %q", got, want)
	}
}

func TestOrderByClauseJSONBField(t *testing.T) {
	got := orderByClause([]search.SortField{{Name: "name", Descending: true}})
	want := "(resource->>'name') DESC"
	if got != want {
		t.Errorf("orderByClause = %q, want %q", got, want)
	}
}
