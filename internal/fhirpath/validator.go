package fhirpath

// Validator adapts the FHIRPath parser to internal/search's
// FHIRPathValidator interface, so the search-param registry can reject a
// SearchParameter whose Expression is not syntactically valid FHIRPath at
// Register time instead of failing silently the first time a search
// tries to use it.
type Validator struct{}

// NewValidator returns a FHIRPathValidator backed by the local parser.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate reports a non-nil error if expression is not syntactically valid
// FHIRPath. It only parses; it never evaluates against a resource.
func (v *Validator) Validate(expression string) error {
	_, err := Parse(expression)
	return err
}
