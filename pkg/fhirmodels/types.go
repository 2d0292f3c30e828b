package fhirmodels

// Common FHIR terminology constants used across the application.

// Canonical URLs of the large external ontologies that are never carried
// as a local concept hierarchy; operations on these delegate to an
// external terminology provider.
const (
	SystemSNOMED = "http://snomed.info/sct"
	SystemLOINC  = "http://loinc.org"
	SystemRxNorm = "http://www.nlm.nih.gov/research/umls/rxnorm"
	SystemUCUM   = "http://unitsofmeasure.org"
)

// CodeSystem.content modes per FHIR R4.
const (
	ContentNotPresent = "not-present"
	ContentExample    = "example"
	ContentFragment   = "fragment"
	ContentComplete   = "complete"
	ContentSupplement = "supplement"
)

// PublicationStatus values per FHIR R4, shared by every conformance
// resource (CodeSystem, ValueSet, ConceptMap, SearchParameter).
const (
	StatusDraft   = "draft"
	StatusActive  = "active"
	StatusRetired = "retired"
	StatusUnknown = "unknown"
)

// ConceptMap element.target.equivalence codes per FHIR R4.
const (
	EquivalenceEquivalent  = "equivalent"
	EquivalenceEqual       = "equal"
	EquivalenceWider       = "wider"
	EquivalenceNarrower    = "narrower"
	EquivalenceSpecializes = "specializes"
	EquivalenceSubsumes    = "subsumes"
	EquivalenceInexact     = "inexact"
	EquivalenceUnmatched   = "unmatched"
	EquivalenceDisjoint    = "disjoint"
)

// SearchParameter.type codes per FHIR R4.
const (
	SearchParamNumber    = "number"
	SearchParamDate      = "date"
	SearchParamString    = "string"
	SearchParamToken     = "token"
	SearchParamReference = "reference"
	SearchParamComposite = "composite"
	SearchParamQuantity  = "quantity"
	SearchParamURI       = "uri"
	SearchParamSpecial   = "special"
)
