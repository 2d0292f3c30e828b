package canonical

import (
	"context"
	"testing"

	"github.com/octofhir/fhircore/internal/storage"
	"github.com/octofhir/fhircore/internal/terminology"
)

func seed(t *testing.T, store storage.Store, resourceType string, resource map[string]interface{}) {
	t.Helper()
	if _, err := store.Create(context.Background(), resourceType, resource); err != nil {
		t.Fatalf("seed %s: %v", resourceType, err)
	}
}

func TestLoadValueSet_DecodesComposeFromWireShape(t *testing.T) {
	backing := storage.NewMemoryStore()
	seed(t, backing, "ValueSet", map[string]interface{}{
		"resourceType": "ValueSet",
		"url":          "http://example.org/vs",
		"version":      "1.0",
		"status":       "active",
		"compose": map[string]interface{}{
			"include": []interface{}{
				map[string]interface{}{
					"system": "http://example.org/cs",
					"concept": []interface{}{
						map[string]interface{}{"code": "A", "display": "Alpha"},
					},
					"filter": []interface{}{
						map[string]interface{}{"property": "concept", "op": "is-a", "value": "root"},
					},
				},
			},
			"exclude": []interface{}{
				map[string]interface{}{
					"system":  "http://example.org/cs",
					"concept": []interface{}{map[string]interface{}{"code": "B"}},
				},
			},
		},
	})

	vs, err := New(backing).LoadValueSet("http://example.org/vs", "")
	if err != nil {
		t.Fatalf("LoadValueSet: %v", err)
	}
	if len(vs.Include) != 1 || len(vs.Include[0].Concept) != 1 || vs.Include[0].Concept[0].Code != "A" {
		t.Fatalf("compose.include was not decoded, got %+v", vs.Include)
	}
	if len(vs.Include[0].Filter) != 1 || vs.Include[0].Filter[0].Op != terminology.FilterIsA {
		t.Fatalf("compose.include.filter was not decoded, got %+v", vs.Include[0].Filter)
	}
	if len(vs.Exclude) != 1 || vs.Exclude[0].Concept[0].Code != "B" {
		t.Fatalf("compose.exclude was not decoded, got %+v", vs.Exclude)
	}
}

func TestLoadCodeSystem_DecodesNestedConcepts(t *testing.T) {
	backing := storage.NewMemoryStore()
	seed(t, backing, "CodeSystem", map[string]interface{}{
		"resourceType": "CodeSystem",
		"url":          "http://example.org/cs",
		"content":      "complete",
		"concept": []interface{}{
			map[string]interface{}{
				"code": "A",
				"concept": []interface{}{
					map[string]interface{}{"code": "A1", "display": "Alpha One"},
				},
			},
		},
	})

	cs, err := New(backing).LoadCodeSystem("http://example.org/cs", "")
	if err != nil {
		t.Fatalf("LoadCodeSystem: %v", err)
	}
	nested, ok := cs.FindConcept("A1")
	if !ok || nested.Display != "Alpha One" {
		t.Fatalf("nested concept was not decoded, got %+v ok=%v", nested, ok)
	}
}

func TestLoadCodeSystem_VersionMismatchIsNotFound(t *testing.T) {
	backing := storage.NewMemoryStore()
	seed(t, backing, "CodeSystem", map[string]interface{}{
		"resourceType": "CodeSystem",
		"url":          "http://example.org/cs",
		"version":      "1.0",
	})

	if _, err := New(backing).LoadCodeSystem("http://example.org/cs", "2.0"); err == nil {
		t.Fatal("expected version mismatch to fail the lookup")
	}
}

func TestFindConceptMaps_FiltersBySourceAndInvertsEquivalence(t *testing.T) {
	backing := storage.NewMemoryStore()
	seed(t, backing, "ConceptMap", map[string]interface{}{
		"resourceType": "ConceptMap",
		"url":          "http://example.org/cm",
		"sourceUri":    "http://example.org/s1",
		"targetUri":    "http://example.org/s2",
		"group": []interface{}{
			map[string]interface{}{
				"source": "http://example.org/s1",
				"target": "http://example.org/s2",
				"element": []interface{}{
					map[string]interface{}{
						"code": "A",
						"target": []interface{}{
							map[string]interface{}{"code": "X", "equivalence": "wider"},
						},
					},
				},
			},
		},
	})
	seed(t, backing, "ConceptMap", map[string]interface{}{
		"resourceType": "ConceptMap",
		"url":          "http://example.org/other",
		"sourceUri":    "http://example.org/unrelated",
	})

	maps, err := New(backing).FindConceptMaps("http://example.org/s1", "")
	if err != nil {
		t.Fatalf("FindConceptMaps: %v", err)
	}
	if len(maps) != 1 || maps[0].URL != "http://example.org/cm" {
		t.Fatalf("expected exactly the matching map, got %+v", maps)
	}
	eq := maps[0].Group[0].Element[0].Target[0].Equivalence
	if eq != terminology.EquivWider {
		t.Fatalf("equivalence not decoded, got %v", eq)
	}
	if eq.Invert() != terminology.EquivNarrower {
		t.Fatalf("expected wider to invert to narrower")
	}
}
