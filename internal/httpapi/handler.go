// Package httpapi is the thin echo adapter over the core subsystems: it
// extracts request parameters, dispatches into the search and
// terminology engines, and maps their typed errors (fhirerr.Error) back
// onto HTTP status codes and OperationOutcome bodies. It owns no
// business logic.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/octofhir/fhircore/internal/fhirerr"
	"github.com/octofhir/fhircore/internal/search"
	"github.com/octofhir/fhircore/internal/storage"
	"github.com/octofhir/fhircore/internal/terminology"
	"github.com/octofhir/fhircore/pkg/pagination"
)

// Handler wires the search and terminology engines to echo routes. It
// holds no per-request state.
type Handler struct {
	registry    *search.Registry
	cache       *search.Cache
	store       storage.Store
	terminology *terminology.Engine
	maxCount    int
}

// New creates a Handler over the given core collaborators.
func New(registry *search.Registry, cache *search.Cache, store storage.Store, term *terminology.Engine, maxCount int) *Handler {
	return &Handler{registry: registry, cache: cache, store: store, terminology: term, maxCount: maxCount}
}

// RegisterRoutes wires the search entry point and the terminology
// operations onto fhirGroup.
func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/:resourceType", h.Search)

	fhirGroup.GET("/ValueSet/$expand", h.Expand)
	fhirGroup.POST("/ValueSet/$expand", h.Expand)
	fhirGroup.GET("/CodeSystem/$lookup", h.Lookup)
	fhirGroup.POST("/CodeSystem/$lookup", h.Lookup)
	fhirGroup.GET("/CodeSystem/$subsumes", h.Subsumes)
	fhirGroup.POST("/CodeSystem/$subsumes", h.Subsumes)
	fhirGroup.GET("/:resourceType/$validate-code", h.ValidateCode)
	fhirGroup.POST("/:resourceType/$validate-code", h.ValidateCode)
	fhirGroup.GET("/ConceptMap/$translate", h.Translate)
	fhirGroup.POST("/ConceptMap/$translate", h.Translate)
}

// Search runs the URL query string through the full search pipeline and
// executes the resulting plan against Storage.
func (h *Handler) Search(c echo.Context) error {
	resourceType := c.Param("resourceType")
	plan, err := search.PlanQuery(h.registry, h.cache, resourceType, c.QueryString(), h.maxCount)
	if err != nil {
		return h.writeSearchError(c, err)
	}

	result, err := h.store.Search(c.Request().Context(), resourceType, search.BuiltQuery{
		WhereClauses: []string{plan.Bound.SQL},
		Params:       plan.Bound.Params,
	}, storage.SearchOptions{
		Count:        plan.Count,
		Offset:       plan.Offset,
		Sort:         plan.Sort,
		IncludeTotal: plan.IncludeTotal,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhirerr.Internal("search execution: %v", err).Outcome())
	}

	page := pagination.Params{Count: plan.Count, Offset: plan.Offset}
	total := len(result.Entries)
	if result.Total != nil {
		total = *result.Total
	}
	return c.JSON(http.StatusOK, searchResponse{
		Entries: result.Entries,
		Total:   result.Total,
		Link:    page.FHIRLinks(c.Request().URL.Path, total),
	})
}

// searchResponse is the wire shape of a search page: the matching
// resources, the optional total (only when _total was requested), and
// Bundle-style pagination links.
type searchResponse struct {
	Entries []storage.Stored      `json:"entries"`
	Total   *int                  `json:"total,omitempty"`
	Link    []pagination.FHIRLink `json:"link"`
}

// Stats exposes the query plan cache's statistics snapshot.
func (h *Handler) Stats(c echo.Context) error {
	s := h.cache.Stats()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"hits":       s.Hits,
		"misses":     s.Misses,
		"evictions":  s.Evictions,
		"insertions": s.Insertions,
		"size":       s.Size,
		"hit_ratio":  s.HitRatio,
	})
}

func (h *Handler) writeSearchError(c echo.Context, err error) error {
	var ve *search.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, fhirerr.UserInput("", "%s", ve.Error()).Outcome())
	}
	var be *search.BuildError
	if errors.As(err, &be) {
		switch be.Kind {
		case search.NotImplemented:
			return c.JSON(fhirerr.KindNotSupported.HTTPStatus(), fhirerr.NotSupported("%s", be.Error()).Outcome())
		default:
			return c.JSON(http.StatusBadRequest, fhirerr.UserInput("", "%s", be.Error()).Outcome())
		}
	}
	return c.JSON(http.StatusInternalServerError, fhirerr.Internal("%v", err).Outcome())
}

// Expand handles GET/POST /ValueSet/$expand. Expansion paging accepts
// both the operation's own offset/count parameters and the search-style
// _offset/_count pair.
func (h *Handler) Expand(c echo.Context) error {
	count := intParam(c, "count", 0) // 0 = unpaginated: the whole expansion
	if count == 0 && c.QueryParam("_count") != "" {
		count = pagination.FromContext(c).Count
	}
	params := terminology.ExpandParams{
		URL:           c.QueryParam("url"),
		Version:       c.QueryParam("valueSetVersion"),
		Filter:        c.QueryParam("filter"),
		Offset:        intParam(c, "offset", pagination.FromContext(c).Offset),
		Count:         count,
		ExcludeNested: c.QueryParam("excludeNested") == "true",
	}
	result, err := h.terminology.Expand(params)
	if err != nil {
		return h.writeTerminologyError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Lookup handles GET/POST /CodeSystem/$lookup.
func (h *Handler) Lookup(c echo.Context) error {
	params := terminology.LookupParams{
		System:  c.QueryParam("system"),
		Code:    c.QueryParam("code"),
		Version: c.QueryParam("version"),
	}
	result, err := h.terminology.Lookup(params)
	if err != nil {
		return h.writeTerminologyError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Subsumes handles GET/POST /CodeSystem/$subsumes.
func (h *Handler) Subsumes(c echo.Context) error {
	params := terminology.SubsumesParams{
		System:  c.QueryParam("system"),
		Version: c.QueryParam("version"),
		CodeA:   c.QueryParam("codeA"),
		CodeB:   c.QueryParam("codeB"),
	}
	outcome, err := h.terminology.Subsumes(params)
	if err != nil {
		return h.writeTerminologyError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"outcome": outcome.String()})
}

// ValidateCode handles GET/POST /{resourceType}/$validate-code, where
// resourceType is either CodeSystem or ValueSet.
func (h *Handler) ValidateCode(c echo.Context) error {
	resourceType := c.Param("resourceType")
	params := terminology.ValidateCodeParams{
		System:  c.QueryParam("system"),
		Code:    c.QueryParam("code"),
		Display: c.QueryParam("display"),
		Version: c.QueryParam("version"),
	}
	switch resourceType {
	case "CodeSystem":
		params.CodeSystemURL = c.QueryParam("url")
	case "ValueSet":
		params.ValueSetURL = c.QueryParam("url")
	default:
		return c.JSON(fhirerr.KindNotSupported.HTTPStatus(),
			fhirerr.NotSupported("$validate-code is not supported on %s", resourceType).Outcome())
	}
	result, err := h.terminology.ValidateCode(params)
	if err != nil {
		return h.writeTerminologyError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Translate handles GET/POST /ConceptMap/$translate.
func (h *Handler) Translate(c echo.Context) error {
	params := terminology.TranslateParams{
		ConceptMapURL: c.QueryParam("url"),
		Version:       c.QueryParam("conceptMapVersion"),
		SourceSystem:  c.QueryParam("source"),
		TargetSystem:  c.QueryParam("target"),
		System:        c.QueryParam("system"),
		Code:          c.QueryParam("code"),
		Reverse:       c.QueryParam("reverse") == "true",
	}
	result, err := h.terminology.Translate(params)
	if err != nil {
		return h.writeTerminologyError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) writeTerminologyError(c echo.Context, err error) error {
	var oe *terminology.OperationError
	if errors.As(err, &oe) {
		switch oe.Kind {
		case terminology.ErrNotFound:
			return c.JSON(http.StatusNotFound, fhirerr.NotFound("%s", oe.Message).Outcome())
		case terminology.ErrInvalidParameters:
			return c.JSON(http.StatusBadRequest, fhirerr.UserInput("", "%s", oe.Message).Outcome())
		case terminology.ErrNotSupported:
			return c.JSON(fhirerr.KindNotSupported.HTTPStatus(), fhirerr.NotSupported("%s", oe.Message).Outcome())
		default:
			return c.JSON(http.StatusInternalServerError, fhirerr.Internal("%s", oe.Message).Outcome())
		}
	}
	return c.JSON(http.StatusInternalServerError, fhirerr.Internal("%v", err).Outcome())
}

func intParam(c echo.Context, name string, defaultValue int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
