package lifeline

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Category is the topical tag used to group templates for discovery.
type Category string

// Template categories. The set is closed.
const (
	CategoryStrategic     Category = "strategic"
	CategoryEmotional     Category = "emotional"
	CategoryCrisis        Category = "crisis"
	CategoryResearch      Category = "research"
	CategoryCommunication Category = "communication"
	CategoryCreative      Category = "creative"
	CategoryAnalytical    Category = "analytical"
)

var categories = []Category{
	CategoryStrategic,
	CategoryEmotional,
	CategoryCrisis,
	CategoryResearch,
	CategoryCommunication,
	CategoryCreative,
	CategoryAnalytical,
}

// Categories returns every category in canonical order.
func Categories() []Category {
	return slices.Clone(categories)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return slices.Contains(categories, c)
}

// ParseCategory converts s to a Category, rejecting unknown names.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidTemplate, s)
	}
	return c, nil
}

// Kind is the declared type of a template variable.
type Kind string

// Variable kinds. KindArray means a list of strings.
const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindBoolean, KindArray:
		return true
	default:
		return false
	}
}

// ParseKind converts s to a Kind, rejecting unknown names.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown variable type %q", ErrInvalidTemplate, s)
	}
	return k, nil
}

// VariableSpec declares one substitution variable of a template.
// Default is nil when no default is declared.
type VariableSpec struct {
	Name        string
	Kind        Kind
	Description string
	Required    bool
	Default     Value
}

// TemplateDefinition is a named body with {{name}} placeholders and a variable schema.
// The engine keeps its own copy; mutating a definition after Register has no effect on the registry.
type TemplateDefinition struct {
	ID          string
	Name        string
	Description string
	Body        string
	Category    Category
	Variables   []VariableSpec
}

// Clone returns a deep copy of the definition.
func (t TemplateDefinition) Clone() TemplateDefinition {
	out := t
	if t.Variables != nil {
		out.Variables = make([]VariableSpec, len(t.Variables))
		for i, v := range t.Variables {
			v.Default = cloneValue(v.Default)
			out.Variables[i] = v
		}
	}
	return out
}

// Variable returns the spec with the given name.
func (t TemplateDefinition) Variable(name string) (VariableSpec, bool) {
	for _, v := range t.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableSpec{}, false
}

// Matches reports whether query occurs in the name or description, ignoring case.
// An empty query matches every template.
func (t TemplateDefinition) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(t.Name), q) ||
		strings.Contains(strings.ToLower(t.Description), q)
}

// ApplyDefaults returns a copy of vars with declared defaults filled in for absent keys.
// Keys already present are never overridden.
func (t TemplateDefinition) ApplyDefaults(vars Vars) Vars {
	out := maps.Clone(vars)
	if out == nil {
		out = make(Vars)
	}
	for _, v := range t.Variables {
		if v.Default == nil {
			continue
		}
		if _, ok := out[v.Name]; !ok {
			out[v.Name] = cloneValue(v.Default)
		}
	}
	return out
}
