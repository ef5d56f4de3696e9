package lifeline

import (
	"fmt"
	"strings"
)

// CheckVariables validates vars against the variable schema of tpl.
// Required variables must be present; present variables must match their declared kind.
// List elements are not inspected. Keys not declared by the template are ignored.
// Returns nil or a *ValidationError listing every problem in declaration order.
func CheckVariables(tpl TemplateDefinition, vars Vars) error {
	var problems []*VariableError
	for _, spec := range tpl.Variables {
		v, ok := vars[spec.Name]
		if !ok || v == nil {
			if spec.Required {
				problems = append(problems, &VariableError{Variable: spec.Name, Template: tpl.ID, Err: ErrMissingVariable})
			}
			continue
		}
		if v.Kind() != spec.Kind {
			problems = append(problems, &VariableError{
				Variable: spec.Name,
				Template: tpl.ID,
				Err:      fmt.Errorf("%w: want %s, got %s", ErrVariableType, spec.Kind, v.Kind()),
			})
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Template: tpl.ID, Problems: problems}
	}
	return nil
}

// CheckDefinition reports structural problems in tpl: empty id, unknown category,
// empty or duplicate variable names, unknown kinds, and defaults of the wrong kind.
// Register calls it only when the engine is built WithStrictRegistration.
func CheckDefinition(tpl TemplateDefinition) error {
	var problems []string
	if strings.TrimSpace(tpl.ID) == "" {
		problems = append(problems, "empty id")
	}
	if !tpl.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", tpl.Category))
	}
	seen := make(map[string]bool, len(tpl.Variables))
	for i, v := range tpl.Variables {
		switch {
		case v.Name == "":
			problems = append(problems, fmt.Sprintf("variable %d has empty name", i))
		case seen[v.Name]:
			problems = append(problems, fmt.Sprintf("duplicate variable %q", v.Name))
		}
		seen[v.Name] = true
		if !v.Kind.Valid() {
			problems = append(problems, fmt.Sprintf("variable %q has unknown type %q", v.Name, v.Kind))
			continue
		}
		if v.Default != nil && v.Default.Kind() != v.Kind {
			problems = append(problems, fmt.Sprintf("variable %q default is %s, want %s", v.Name, v.Default.Kind(), v.Kind))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: template %q: %s", ErrInvalidTemplate, tpl.ID, strings.Join(problems, "; "))
	}
	return nil
}
