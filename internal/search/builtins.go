package search

// DefaultParamDefs returns the built-in search parameter definitions common
// to every resource type, plus a representative set of per-type parameters.
// A real deployment registers many more via Registry.Register as
// SearchParameter resources are loaded from storage; these seed the
// registry so the engine is useful before any are registered.
func DefaultParamDefs() []*ParamDef {
	var defs []*ParamDef
	for _, rt := range commonResourceTypes {
		defs = append(defs,
			&ParamDef{Code: "_id", Base: rt, Type: Token, Expression: rt + ".id", Common: true},
			&ParamDef{Code: "_lastUpdated", Base: rt, Type: Date, Expression: rt + ".meta.lastUpdated", Common: true,
				Comparators: map[Prefix]bool{PrefixEq: true, PrefixGe: true, PrefixGt: true, PrefixLe: true, PrefixLt: true}},
			&ParamDef{Code: "identifier", Base: rt, Type: Token, Expression: rt + ".identifier", Common: true,
				Modifiers: map[ModifierKind]bool{ModifierOfType: true}},
		)
	}

	defs = append(defs,
		&ParamDef{Code: "name", Base: "Patient", Type: String, Expression: "Patient.name",
			Modifiers: map[ModifierKind]bool{ModifierExact: true, ModifierContains: true}},
		&ParamDef{Code: "family", Base: "Patient", Type: String, Expression: "Patient.name.family",
			Modifiers: map[ModifierKind]bool{ModifierExact: true, ModifierContains: true}},
		&ParamDef{Code: "given", Base: "Patient", Type: String, Expression: "Patient.name.given",
			Modifiers: map[ModifierKind]bool{ModifierExact: true, ModifierContains: true}},
		&ParamDef{Code: "birthdate", Base: "Patient", Type: Date, Expression: "Patient.birthDate",
			Comparators: map[Prefix]bool{PrefixEq: true, PrefixGe: true, PrefixGt: true, PrefixLe: true, PrefixLt: true}},
		&ParamDef{Code: "gender", Base: "Patient", Type: Token, Expression: "Patient.gender"},

		&ParamDef{Code: "status", Base: "Observation", Type: Token, Expression: "Observation.status",
			Modifiers: map[ModifierKind]bool{ModifierNot: true}},
		&ParamDef{Code: "code", Base: "Observation", Type: Token, Expression: "Observation.code",
			Modifiers: map[ModifierKind]bool{ModifierIn: true, ModifierNotIn: true, ModifierBelow: true, ModifierAbove: true, ModifierText: true, ModifierNot: true}},
		&ParamDef{Code: "subject", Base: "Observation", Type: Reference, Expression: "Observation.subject",
			Target: []string{"Patient", "Group", "Device", "Location"}},
		&ParamDef{Code: "patient", Base: "Observation", Type: Reference, Expression: "Observation.subject.where(resolve() is Patient)",
			Target: []string{"Patient"}},
		&ParamDef{Code: "value-quantity", Base: "Observation", Type: Composite,
			Expression: "Observation.value as Quantity", Target: []string{"code", "value"}},
		&ParamDef{Code: "date", Base: "Observation", Type: Date, Expression: "Observation.effective",
			Comparators: map[Prefix]bool{PrefixEq: true, PrefixGe: true, PrefixGt: true, PrefixLe: true, PrefixLt: true}},

		&ParamDef{Code: "status", Base: "Encounter", Type: Token, Expression: "Encounter.status"},
		&ParamDef{Code: "subject", Base: "Encounter", Type: Reference, Expression: "Encounter.subject", Target: []string{"Patient", "Group"}},
		&ParamDef{Code: "clinical-status", Base: "Condition", Type: Token, Expression: "Condition.clinicalStatus"},
		&ParamDef{Code: "subject", Base: "Condition", Type: Reference, Expression: "Condition.subject", Target: []string{"Patient", "Group"}},

		&ParamDef{Code: "url", Base: "ValueSet", Type: URI, Expression: "ValueSet.url"},
		&ParamDef{Code: "url", Base: "CodeSystem", Type: URI, Expression: "CodeSystem.url"},
		&ParamDef{Code: "url", Base: "ConceptMap", Type: URI, Expression: "ConceptMap.url"},
		&ParamDef{Code: "source", Base: "ConceptMap", Type: URI, Expression: "ConceptMap.sourceUri"},
		&ParamDef{Code: "target", Base: "ConceptMap", Type: URI, Expression: "ConceptMap.targetUri"},
	)
	return defs
}

// CommonResourceTypes is the fixed resource-type set this module seeds
// registry defaults and storage tables for. Exported so cmd/ wiring (the
// table-per-resource bootstrap in `migrate up`) can share one list rather
// than hand-copying it.
var CommonResourceTypes = commonResourceTypes

var commonResourceTypes = []string{
	"Patient", "Observation", "Encounter", "Condition", "Practitioner",
	"Organization", "ValueSet", "CodeSystem", "ConceptMap", "SearchParameter",
}
