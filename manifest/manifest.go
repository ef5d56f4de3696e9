// Package manifest reads template definitions, and optionally the persona that
// owns them, from YAML files.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/lifeline-agents/lifeline"

	"gopkg.in/yaml.v3"
)

// Persona status values.
const (
	StatusActive  = "active"
	StatusStandby = "standby"
	StatusOffline = "offline"
)

// Expertise levels for Personality.ExpertiseLevel.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelExpert       = "expert"
	LevelMaster       = "master"
)

// Persona is the agent section of a manifest. Its ID tags every template in the file.
//
// Prompt is the short system line used when the persona answers directly;
// SystemPrompt is the full character brief.
type Persona struct {
	ID            string       `yaml:"id"`
	Name          string       `yaml:"name"`
	Title         string       `yaml:"title"`
	Description   string       `yaml:"description"`
	Constellation string       `yaml:"constellation"`
	Color         string       `yaml:"color"`
	Status        string       `yaml:"status"`
	Abilities     []string     `yaml:"abilities"`
	Expertise     []string     `yaml:"expertise"`
	Greeting      string       `yaml:"greeting"`
	Fallback      string       `yaml:"fallback"`
	Prompt        string       `yaml:"prompt"`
	SystemPrompt  string       `yaml:"system_prompt"`
	Personality   Personality  `yaml:"personality"`
	Capabilities  Capabilities `yaml:"capabilities"`
}

// Personality describes how a persona speaks.
type Personality struct {
	Tone               string   `yaml:"tone"`
	CommunicationStyle string   `yaml:"communication_style"`
	ExpertiseLevel     string   `yaml:"expertise_level"`
	Approach           string   `yaml:"approach"`
	Traits             []string `yaml:"traits"`
}

// Capabilities lists what a persona can do and the output it produces.
type Capabilities struct {
	PrimaryFunctions     []string `yaml:"primary_functions"`
	SpecializedKnowledge []string `yaml:"specialized_knowledge"`
	InteractionPatterns  []string `yaml:"interaction_patterns"`
	OutputFormats        []string `yaml:"output_formats"`
}

// Clone returns a deep copy of the persona.
func (p Persona) Clone() Persona {
	out := p
	out.Abilities = slices.Clone(p.Abilities)
	out.Expertise = slices.Clone(p.Expertise)
	out.Personality.Traits = slices.Clone(p.Personality.Traits)
	out.Capabilities = Capabilities{
		PrimaryFunctions:     slices.Clone(p.Capabilities.PrimaryFunctions),
		SpecializedKnowledge: slices.Clone(p.Capabilities.SpecializedKnowledge),
		InteractionPatterns:  slices.Clone(p.Capabilities.InteractionPatterns),
		OutputFormats:        slices.Clone(p.Capabilities.OutputFormats),
	}
	return out
}

// Manifest is one parsed file: an optional owning persona and its templates.
type Manifest struct {
	Agent     *Persona
	Templates []lifeline.TemplateDefinition
}

// AgentID returns the owning persona id, or "" for shared templates.
func (m *Manifest) AgentID() string {
	if m.Agent == nil {
		return ""
	}
	return m.Agent.ID
}

// Register adds every template to e, tagged with the owning persona id when present.
func (m *Manifest) Register(e *lifeline.Engine) error {
	agentID := m.AgentID()
	for _, tpl := range m.Templates {
		if err := e.Register(tpl, agentID); err != nil {
			return err
		}
	}
	return nil
}

// fileManifest is the YAML shape before conversion to domain types.
type fileManifest struct {
	Agent     *Persona       `yaml:"agent"`
	Templates []fileTemplate `yaml:"templates"`
}

type fileTemplate struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
	Variables   []fileVariable `yaml:"variables"`
	Template    string         `yaml:"template"`
}

type fileVariable struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     any    `yaml:"default"`
}

// ParseBytes parses a YAML manifest.
func ParseBytes(data []byte) (*Manifest, error) {
	var m fileManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", lifeline.ErrInvalidManifest, err)
	}
	return build(&m)
}

// ParseFile reads and parses a manifest file.
func ParseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("manifest: read file: %w", err)
	}
	return ParseBytes(data)
}

// ParseFS reads and parses a manifest from fs.FS (e.g. embed.FS).
func ParseFS(fsys fs.FS, name string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("manifest: read fs: %w", err)
	}
	return ParseBytes(data)
}

func build(m *fileManifest) (*Manifest, error) {
	out := &Manifest{Agent: m.Agent}
	if m.Agent != nil {
		if m.Agent.ID == "" {
			return nil, fmt.Errorf("%w: agent: missing id", lifeline.ErrInvalidManifest)
		}
		switch m.Agent.Status {
		case "":
			m.Agent.Status = StatusActive
		case StatusActive, StatusStandby, StatusOffline:
		default:
			return nil, fmt.Errorf("%w: agent %q: invalid status %q", lifeline.ErrInvalidManifest, m.Agent.ID, m.Agent.Status)
		}
		switch m.Agent.Personality.ExpertiseLevel {
		case "", LevelBeginner, LevelIntermediate, LevelExpert, LevelMaster:
		default:
			return nil, fmt.Errorf("%w: agent %q: invalid expertise level %q",
				lifeline.ErrInvalidManifest, m.Agent.ID, m.Agent.Personality.ExpertiseLevel)
		}
	}
	out.Templates = make([]lifeline.TemplateDefinition, 0, len(m.Templates))
	for i, ft := range m.Templates {
		tpl, err := buildTemplate(ft)
		if err != nil {
			return nil, fmt.Errorf("%w: template %d: %w", lifeline.ErrInvalidManifest, i, err)
		}
		out.Templates = append(out.Templates, tpl)
	}
	return out, nil
}

func buildTemplate(ft fileTemplate) (lifeline.TemplateDefinition, error) {
	if ft.ID == "" {
		return lifeline.TemplateDefinition{}, fmt.Errorf("missing id")
	}
	category, err := lifeline.ParseCategory(ft.Category)
	if err != nil {
		return lifeline.TemplateDefinition{}, fmt.Errorf("%q: %w", ft.ID, err)
	}
	tpl := lifeline.TemplateDefinition{
		ID:          ft.ID,
		Name:        ft.Name,
		Description: ft.Description,
		Body:        ft.Template,
		Category:    category,
		Variables:   make([]lifeline.VariableSpec, 0, len(ft.Variables)),
	}
	for _, fv := range ft.Variables {
		spec, err := buildVariable(fv)
		if err != nil {
			return lifeline.TemplateDefinition{}, fmt.Errorf("%q: %w", ft.ID, err)
		}
		tpl.Variables = append(tpl.Variables, spec)
	}
	if err := lifeline.CheckDefinition(tpl); err != nil {
		return lifeline.TemplateDefinition{}, err
	}
	return tpl, nil
}

func buildVariable(fv fileVariable) (lifeline.VariableSpec, error) {
	if fv.Name == "" {
		return lifeline.VariableSpec{}, fmt.Errorf("variable with empty name")
	}
	kind, err := lifeline.ParseKind(fv.Type)
	if err != nil {
		return lifeline.VariableSpec{}, fmt.Errorf("variable %q: %w", fv.Name, err)
	}
	spec := lifeline.VariableSpec{
		Name:        fv.Name,
		Kind:        kind,
		Description: fv.Description,
		Required:    fv.Required,
	}
	if fv.Default != nil {
		def, err := lifeline.ValueOf(fv.Default)
		if err != nil {
			return lifeline.VariableSpec{}, fmt.Errorf("variable %q default: %w", fv.Name, err)
		}
		if def.Kind() != kind {
			return lifeline.VariableSpec{}, fmt.Errorf("variable %q default is %s, want %s", fv.Name, def.Kind(), kind)
		}
		spec.Default = def
	}
	return spec, nil
}
