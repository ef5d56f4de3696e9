package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/lifeline-agents/lifeline"
	"github.com/lifeline-agents/lifeline/manifest"

	"gopkg.in/yaml.v3"
)

//go:embed data
var dataFS embed.FS

// indexFile lists manifests relative to the catalog root in registration order.
const indexFile = "catalog.yaml"

type index struct {
	Personas []string `yaml:"personas"`
	Shared   []string `yaml:"shared"`
}

// Catalog holds parsed persona and shared manifests in registration order.
type Catalog struct {
	personas []*manifest.Manifest
	shared   []*manifest.Manifest
}

// Default loads the embedded catalog.
func Default() (*Catalog, error) {
	return Load(dataFS, "data")
}

// Load reads root/catalog.yaml from fsys and parses every manifest it lists.
// Persona entries must carry an agent section; shared entries must not.
func Load(fsys fs.FS, root string) (*Catalog, error) {
	raw, err := fs.ReadFile(fsys, path.Join(root, indexFile))
	if err != nil {
		return nil, fmt.Errorf("catalog: read index: %w", err)
	}
	var idx index
	if err := yaml.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", lifeline.ErrInvalidManifest, indexFile, err)
	}
	c := &Catalog{}
	seen := make(map[string]bool)
	for _, name := range idx.Personas {
		m, err := manifest.ParseFS(fsys, path.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if m.Agent == nil {
			return nil, fmt.Errorf("%w: %s: persona manifest has no agent section", lifeline.ErrInvalidManifest, name)
		}
		if seen[m.Agent.ID] {
			return nil, fmt.Errorf("%w: %s: duplicate persona %q", lifeline.ErrInvalidManifest, name, m.Agent.ID)
		}
		seen[m.Agent.ID] = true
		c.personas = append(c.personas, m)
	}
	for _, name := range idx.Shared {
		m, err := manifest.ParseFS(fsys, path.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if m.Agent != nil {
			return nil, fmt.Errorf("%w: %s: shared manifest must not declare an agent", lifeline.ErrInvalidManifest, name)
		}
		c.shared = append(c.shared, m)
	}
	return c, nil
}

// Personas returns the roster in registration order.
func (c *Catalog) Personas() []manifest.Persona {
	out := make([]manifest.Persona, 0, len(c.personas))
	for _, m := range c.personas {
		out = append(out, m.Agent.Clone())
	}
	return out
}

// Persona returns the persona with the given id.
func (c *Catalog) Persona(id string) (manifest.Persona, bool) {
	for _, m := range c.personas {
		if m.Agent.ID == id {
			return m.Agent.Clone(), true
		}
	}
	return manifest.Persona{}, false
}

// Register adds every persona's templates tagged with the persona id, then the shared sets untagged.
func (c *Catalog) Register(e *lifeline.Engine) error {
	for _, m := range c.personas {
		if err := m.Register(e); err != nil {
			return fmt.Errorf("catalog: persona %q: %w", m.AgentID(), err)
		}
	}
	for _, m := range c.shared {
		if err := m.Register(e); err != nil {
			return fmt.Errorf("catalog: shared templates: %w", err)
		}
	}
	return nil
}
