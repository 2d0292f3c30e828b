package terminology

import "github.com/octofhir/fhircore/pkg/fhirmodels"

// SubsumesParams are the normalised inputs to $subsumes.
type SubsumesParams struct {
	System  string
	Version string
	CodeA   string
	CodeB   string
}

// Subsumes implements $subsumes. If the codes are equal the outcome is
// Equivalent. Large ontologies (SNOMED CT, LOINC, RxNorm) or a CodeSystem
// with no local hierarchy delegate to the external provider. Otherwise the
// local hierarchy is walked: A subsumes B iff B is anywhere in A's subtree.
func (e *Engine) Subsumes(p SubsumesParams) (SubsumptionOutcome, error) {
	if p.CodeA == "" || p.CodeB == "" {
		return NotSubsumed, errInvalidParameters("codeA and codeB are required")
	}
	if p.CodeA == p.CodeB {
		return Equivalent, nil
	}

	if largeCodeSystems[p.System] {
		if e.external == nil {
			// Upstream unavailability degrades to the conservative
			// NotSubsumed answer rather than failing the request.
			return NotSubsumed, nil
		}
		return e.external.Subsumes(p.System, p.CodeA, p.CodeB)
	}

	cs, err := e.codeSystem(p.System, p.Version)
	if err != nil {
		return NotSubsumed, err
	}
	if cs.Content != fhirmodels.ContentComplete && e.external != nil {
		return e.external.Subsumes(p.System, p.CodeA, p.CodeB)
	}

	if cs.Contains(p.CodeA, p.CodeB) {
		return Subsumes, nil
	}
	if cs.Contains(p.CodeB, p.CodeA) {
		return SubsumedBy, nil
	}
	return NotSubsumed, nil
}
