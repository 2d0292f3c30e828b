package fhirmodel

// builtinResourceSchemas and builtinComplexSchemas supply the static
// model the JSONB schema builder walks, trimmed to the element/type
// shape the LSP resolver needs rather than the full
// StructureDefinition/ElementDefinition resource representation.

func baseResourceElements() []Element {
	return []Element{
		{Name: "id", Types: []ElementType{{Code: "id"}}},
		{Name: "meta", Types: []ElementType{{Code: "Meta"}}},
		{Name: "text", Types: []ElementType{{Code: "Narrative"}}},
	}
}

func builtinResourceSchemas() []*Schema {
	return []*Schema{
		{TypeName: "Patient", Elements: append(baseResourceElements(),
			Element{Name: "identifier", Types: []ElementType{{Code: "Identifier", IsArray: true}}},
			Element{Name: "active", Types: []ElementType{{Code: "boolean"}}},
			Element{Name: "name", Types: []ElementType{{Code: "HumanName", IsArray: true}}},
			Element{Name: "telecom", Types: []ElementType{{Code: "ContactPoint", IsArray: true}}},
			Element{Name: "gender", Types: []ElementType{{Code: "code"}}},
			Element{Name: "birthDate", Types: []ElementType{{Code: "date"}}},
			Element{Name: "address", Types: []ElementType{{Code: "Address", IsArray: true}}},
			Element{Name: "managingOrganization", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Organization"}}}},
		)},
		{TypeName: "Observation", Elements: append(baseResourceElements(),
			Element{Name: "status", Types: []ElementType{{Code: "code"}}},
			Element{Name: "category", Types: []ElementType{{Code: "CodeableConcept", IsArray: true}}},
			Element{Name: "code", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "subject", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Patient"}}}},
			Element{Name: "encounter", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Encounter"}}}},
			Element{Name: "value", Types: []ElementType{{Code: "Quantity"}, {Code: "string"}, {Code: "CodeableConcept"}}},
			Element{Name: "effective", Types: []ElementType{{Code: "dateTime"}, {Code: "Period"}}},
			Element{Name: "component", Types: []ElementType{{Code: "BackboneElement", IsArray: true}}},
		)},
		{TypeName: "Condition", Elements: append(baseResourceElements(),
			Element{Name: "clinicalStatus", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "verificationStatus", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "code", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "subject", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Patient"}}}},
			Element{Name: "onset", Types: []ElementType{{Code: "dateTime"}, {Code: "Age"}, {Code: "Period"}}},
		)},
		{TypeName: "Encounter", Elements: append(baseResourceElements(),
			Element{Name: "status", Types: []ElementType{{Code: "code"}}},
			Element{Name: "class", Types: []ElementType{{Code: "Coding"}}},
			Element{Name: "subject", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Patient"}}}},
			Element{Name: "period", Types: []ElementType{{Code: "Period"}}},
			Element{Name: "reasonCode", Types: []ElementType{{Code: "CodeableConcept", IsArray: true}}},
		)},
		{TypeName: "MedicationRequest", Elements: append(baseResourceElements(),
			Element{Name: "status", Types: []ElementType{{Code: "code"}}},
			Element{Name: "intent", Types: []ElementType{{Code: "code"}}},
			Element{Name: "medication", Types: []ElementType{{Code: "CodeableConcept"}, {Code: "Reference"}}},
			Element{Name: "subject", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Patient"}}}},
			Element{Name: "dosageInstruction", Types: []ElementType{{Code: "Dosage", IsArray: true}}},
		)},
		{TypeName: "Procedure", Elements: append(baseResourceElements(),
			Element{Name: "status", Types: []ElementType{{Code: "code"}}},
			Element{Name: "code", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "subject", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Patient"}}}},
			Element{Name: "performed", Types: []ElementType{{Code: "dateTime"}, {Code: "Period"}}},
		)},
		{TypeName: "DiagnosticReport", Elements: append(baseResourceElements(),
			Element{Name: "status", Types: []ElementType{{Code: "code"}}},
			Element{Name: "code", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "subject", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Patient"}}}},
			Element{Name: "result", Types: []ElementType{{Code: "Reference", IsArray: true, TargetProfile: []string{"Observation"}}}},
		)},
		{TypeName: "AllergyIntolerance", Elements: append(baseResourceElements(),
			Element{Name: "clinicalStatus", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "code", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "patient", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Patient"}}}},
			Element{Name: "criticality", Types: []ElementType{{Code: "code"}}},
		)},
		{TypeName: "Immunization", Elements: append(baseResourceElements(),
			Element{Name: "status", Types: []ElementType{{Code: "code"}}},
			Element{Name: "vaccineCode", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "patient", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Patient"}}}},
			Element{Name: "occurrence", Types: []ElementType{{Code: "dateTime"}, {Code: "string"}}},
		)},
		{TypeName: "Practitioner", Elements: append(baseResourceElements(),
			Element{Name: "identifier", Types: []ElementType{{Code: "Identifier", IsArray: true}}},
			Element{Name: "active", Types: []ElementType{{Code: "boolean"}}},
			Element{Name: "name", Types: []ElementType{{Code: "HumanName", IsArray: true}}},
		)},
		{TypeName: "Organization", Elements: append(baseResourceElements(),
			Element{Name: "identifier", Types: []ElementType{{Code: "Identifier", IsArray: true}}},
			Element{Name: "active", Types: []ElementType{{Code: "boolean"}}},
			Element{Name: "name", Types: []ElementType{{Code: "string"}}},
			Element{Name: "type", Types: []ElementType{{Code: "CodeableConcept", IsArray: true}}},
		)},
		{TypeName: "ServiceRequest", Elements: append(baseResourceElements(),
			Element{Name: "status", Types: []ElementType{{Code: "code"}}},
			Element{Name: "intent", Types: []ElementType{{Code: "code"}}},
			Element{Name: "code", Types: []ElementType{{Code: "CodeableConcept"}}},
			Element{Name: "subject", Types: []ElementType{{Code: "Reference", TargetProfile: []string{"Patient"}}}},
		)},
	}
}

func builtinComplexSchemas() []*Schema {
	return []*Schema{
		{TypeName: "HumanName", Elements: []Element{
			{Name: "use", Types: []ElementType{{Code: "code"}}},
			{Name: "text", Types: []ElementType{{Code: "string"}}},
			{Name: "family", Types: []ElementType{{Code: "string"}}},
			{Name: "given", Types: []ElementType{{Code: "string", IsArray: true}}},
		}},
		{TypeName: "CodeableConcept", Elements: []Element{
			{Name: "coding", Types: []ElementType{{Code: "Coding", IsArray: true}}},
			{Name: "text", Types: []ElementType{{Code: "string"}}},
		}},
		{TypeName: "Coding", Elements: []Element{
			{Name: "system", Types: []ElementType{{Code: "uri"}}},
			{Name: "version", Types: []ElementType{{Code: "string"}}},
			{Name: "code", Types: []ElementType{{Code: "code"}}},
			{Name: "display", Types: []ElementType{{Code: "string"}}},
		}},
		{TypeName: "Identifier", Elements: []Element{
			{Name: "use", Types: []ElementType{{Code: "code"}}},
			{Name: "system", Types: []ElementType{{Code: "uri"}}},
			{Name: "value", Types: []ElementType{{Code: "string"}}},
			{Name: "period", Types: []ElementType{{Code: "Period"}}},
		}},
		{TypeName: "Reference", Elements: []Element{
			{Name: "reference", Types: []ElementType{{Code: "string"}}},
			{Name: "type", Types: []ElementType{{Code: "uri"}}},
			{Name: "display", Types: []ElementType{{Code: "string"}}},
		}},
		{TypeName: "Period", Elements: []Element{
			{Name: "start", Types: []ElementType{{Code: "dateTime"}}},
			{Name: "end", Types: []ElementType{{Code: "dateTime"}}},
		}},
		{TypeName: "Address", Elements: []Element{
			{Name: "use", Types: []ElementType{{Code: "code"}}},
			{Name: "line", Types: []ElementType{{Code: "string", IsArray: true}}},
			{Name: "city", Types: []ElementType{{Code: "string"}}},
			{Name: "state", Types: []ElementType{{Code: "string"}}},
			{Name: "postalCode", Types: []ElementType{{Code: "string"}}},
			{Name: "country", Types: []ElementType{{Code: "string"}}},
		}},
		{TypeName: "ContactPoint", Elements: []Element{
			{Name: "system", Types: []ElementType{{Code: "code"}}},
			{Name: "value", Types: []ElementType{{Code: "string"}}},
			{Name: "use", Types: []ElementType{{Code: "code"}}},
		}},
		{TypeName: "Quantity", Elements: []Element{
			{Name: "value", Types: []ElementType{{Code: "decimal"}}},
			{Name: "unit", Types: []ElementType{{Code: "string"}}},
			{Name: "system", Types: []ElementType{{Code: "uri"}}},
			{Name: "code", Types: []ElementType{{Code: "code"}}},
		}},
		{TypeName: "Meta", Elements: []Element{
			{Name: "versionId", Types: []ElementType{{Code: "id"}}},
			{Name: "lastUpdated", Types: []ElementType{{Code: "instant"}}},
			{Name: "profile", Types: []ElementType{{Code: "canonical", IsArray: true}}},
		}},
	}
}
