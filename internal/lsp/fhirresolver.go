package lsp

import (
	"strings"
	"sync"

	"github.com/octofhir/fhircore/internal/fhirmodel"
)

// FieldKind classifies a schema field's JSON shape.
type FieldKind int

const (
	KindObject FieldKind = iota
	KindArray
	KindString
	KindNumber
	KindBoolean
	KindUnknown
)

// Field is one entry of a Schema.
type Field struct {
	Name        string
	Kind        FieldKind
	Nested      *Schema
	Description string
}

// Schema is the recursive JSONB shape view the FHIR Resolver builds for a
// resource or complex type.
type Schema struct {
	Fields []Field
}

// maxResolverDepth bounds the recursive schema walk.
const maxResolverDepth = 5

// FHIRResolver builds and caches per-resource JSONB schema views over a
// fhirmodel.Provider: lazy, depth-bounded, cycle-safe via a `seen` set,
// held for the life of the server.
type FHIRResolver struct {
	provider fhirmodel.Provider

	mu    sync.Mutex
	cache map[string]*Schema
}

// NewFHIRResolver creates a resolver backed by provider.
func NewFHIRResolver(provider fhirmodel.Provider) *FHIRResolver {
	return &FHIRResolver{provider: provider, cache: make(map[string]*Schema)}
}

// SchemaFor returns (building and caching, if necessary) the JsonbSchema
// for typeName.
func (r *FHIRResolver) SchemaFor(typeName string) *Schema {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schemaForLocked(typeName, 0, map[string]bool{})
}

func (r *FHIRResolver) schemaForLocked(typeName string, depth int, seen map[string]bool) *Schema {
	if cached, ok := r.cache[typeName]; ok && depth == 0 {
		return cached
	}
	if depth > maxResolverDepth {
		return nil
	}
	if seen[typeName] {
		return nil
	}
	if fhirmodel.IsTerminalComplex(typeName) {
		return nil
	}
	def, ok := r.provider.GetSchema(typeName)
	if !ok {
		return nil
	}

	seen[typeName] = true
	defer delete(seen, typeName)

	schema := &Schema{}
	for _, el := range def.Elements {
		name := strings.TrimSuffix(el.Name, "[x]")
		field := Field{Name: name}

		if len(el.Types) != 1 {
			// Choice element: ambiguous without a further type cast, same
			// as fhirmodel.GetElementType's (TypeInfo{}, false) contract.
			field.Kind = KindUnknown
			schema.Fields = append(schema.Fields, field)
			continue
		}

		t := el.Types[0]
		if t.IsArray {
			field.Kind = KindArray
		} else if fhirmodel.IsPrimitive(t.Code) {
			field.Kind = primitiveFieldKind(t.Code)
		} else {
			field.Kind = KindObject
		}

		if !fhirmodel.IsPrimitive(t.Code) {
			field.Nested = r.schemaForLocked(t.Code, depth+1, seen)
		}

		schema.Fields = append(schema.Fields, field)
	}

	if depth == 0 {
		r.cache[typeName] = schema
	}
	return schema
}

func primitiveFieldKind(code string) FieldKind {
	switch code {
	case "boolean":
		return KindBoolean
	case "integer", "decimal", "unsignedInt", "positiveInt":
		return KindNumber
	default:
		return KindString
	}
}

// stripArrayIndex removes a trailing `[N]` repetition index from a path
// segment ("name[0]" becomes "name"): FHIR paths do not index into
// repetitions.
func stripArrayIndex(segment string) string {
	if i := strings.IndexByte(segment, '['); i >= 0 {
		return segment[:i]
	}
	return segment
}

// FieldAt returns the field reached by walking dotted path segments
// (array-index segments ignored for the lookup itself) from
// resourceType's root schema, for diagnostics to check both that a path
// resolves at all and the shape of what it resolves to.
func (r *FHIRResolver) FieldAt(resourceType, path string) (Field, bool) {
	schema := r.SchemaFor(resourceType)
	if schema == nil || path == "" {
		return Field{}, false
	}

	segments := strings.Split(path, ".")
	current := schema
	var field Field
	for i, raw := range segments {
		seg := stripArrayIndex(raw)
		if seg == "" {
			return Field{}, false
		}
		var next *Field
		for j := range current.Fields {
			if current.Fields[j].Name == seg {
				next = &current.Fields[j]
				break
			}
		}
		if next == nil {
			return Field{}, false
		}
		field = *next
		if i < len(segments)-1 {
			if next.Nested == nil {
				return Field{}, false
			}
			current = next.Nested
		}
	}
	return field, true
}

// ChildrenAt returns the fields reachable by walking dotted path segments
// (array-index segments ignored) from resourceType's root schema.
func (r *FHIRResolver) ChildrenAt(resourceType, path string) []Field {
	schema := r.SchemaFor(resourceType)
	if schema == nil {
		return nil
	}
	if path == "" {
		return schema.Fields
	}

	segments := strings.Split(path, ".")
	current := schema
	for _, raw := range segments {
		seg := stripArrayIndex(raw)
		if seg == "" {
			continue
		}
		var next *Field
		for i := range current.Fields {
			if current.Fields[i].Name == seg {
				next = &current.Fields[i]
				break
			}
		}
		if next == nil || next.Nested == nil {
			return nil
		}
		current = next.Nested
	}
	return current.Fields
}
