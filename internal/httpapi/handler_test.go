package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/octofhir/fhircore/internal/canonical"
	"github.com/octofhir/fhircore/internal/fhirpath"
	"github.com/octofhir/fhircore/internal/search"
	"github.com/octofhir/fhircore/internal/storage"
	"github.com/octofhir/fhircore/internal/terminology"
)

func newTestHandler() *Handler {
	registry := search.NewRegistry(search.DefaultParamDefs(), fhirpath.NewValidator())
	cache := search.NewCache(16)
	store := storage.NewMemoryStore()
	termCache := terminology.NewCache(0)
	canonicalStore := canonical.New(store)
	engine := terminology.NewEngine(termCache, canonicalStore, nil)
	return New(registry, cache, store, engine, 100)
}

func TestHandler_Search_CompilesAndReturnsResults(t *testing.T) {
	h := newTestHandler()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/Observation?code=http://loinc.org|1234-5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("Observation")

	if err := h.Search(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Search_UnknownParamIsBadRequest(t *testing.T) {
	h := newTestHandler()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/Observation?bogus=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("Observation")

	if err := h.Search(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unregistered search parameter, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Lookup_MissingCodeIsBadRequest(t *testing.T) {
	h := newTestHandler()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/CodeSystem/$lookup?system=http://loinc.org", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Lookup(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when code is missing, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_ValidateCode_RejectsUnsupportedResourceType(t *testing.T) {
	h := newTestHandler()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/fhir/Patient/$validate-code?system=x&code=y", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("resourceType")
	c.SetParamValues("Patient")

	if err := h.ValidateCode(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity && rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected a not-supported status for $validate-code on Patient, got %d: %s", rec.Code, rec.Body.String())
	}
}
