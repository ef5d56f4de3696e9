package lifeline

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Engine owns registered templates and renders them.
// Indices are populated only by Register; nothing is ever removed.
// Safe for concurrent use: Register takes the write lock, everything else the read lock.
type Engine struct {
	mu         sync.RWMutex
	templates  map[string]TemplateDefinition
	order      []string // primary index ids in first-registration order
	byCategory map[Category][]string
	byAgent    map[string][]string
	agents     []string // agent ids in first-tag order

	logger       *zap.Logger
	strict       bool
	maxBodyBytes int
}

// NewEngine creates an empty Engine and applies options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		templates:  make(map[string]TemplateDefinition),
		byCategory: make(map[Category][]string),
		byAgent:    make(map[string][]string),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register stores tpl and indexes it by category and, when agentID is non-empty, by agent.
//
// Registering an id again replaces the stored definition (last write wins) but keeps its
// position in AllTemplates. Category and agent buckets never hold the same id twice; a
// replacement with a different category moves the id to the new bucket.
//
// Without WithStrictRegistration the only failure is a body over the WithMaxBodyBytes cap.
func (e *Engine) Register(tpl TemplateDefinition, agentID string) error {
	if e.maxBodyBytes > 0 && len(tpl.Body) > e.maxBodyBytes {
		return fmt.Errorf("%w: template %q body is %d bytes, limit %d", ErrInvalidTemplate, tpl.ID, len(tpl.Body), e.maxBodyBytes)
	}
	if e.strict {
		if err := CheckDefinition(tpl); err != nil {
			return err
		}
	}
	tpl = tpl.Clone()

	e.mu.Lock()
	defer e.mu.Unlock()
	prev, replaced := e.templates[tpl.ID]
	e.templates[tpl.ID] = tpl
	if !replaced {
		e.order = append(e.order, tpl.ID)
	} else if prev.Category != tpl.Category {
		e.byCategory[prev.Category] = slices.DeleteFunc(e.byCategory[prev.Category], func(id string) bool {
			return id == tpl.ID
		})
	}
	if !slices.Contains(e.byCategory[tpl.Category], tpl.ID) {
		e.byCategory[tpl.Category] = append(e.byCategory[tpl.Category], tpl.ID)
	}
	if agentID != "" {
		bucket, known := e.byAgent[agentID]
		if !known {
			e.agents = append(e.agents, agentID)
		}
		if !slices.Contains(bucket, tpl.ID) {
			e.byAgent[agentID] = append(bucket, tpl.ID)
		}
	}
	e.logger.Debug("template registered",
		zap.String("template_id", tpl.ID),
		zap.String("category", string(tpl.Category)),
		zap.String("agent_id", agentID),
		zap.Bool("replaced", replaced),
	)
	return nil
}

// Render looks up the template, validates vars against its schema, and substitutes placeholders.
// Returns ErrUnknownTemplate or a *ValidationError (errors.Is ErrInvalidVariables); no partial output.
func (e *Engine) Render(id string, vars Vars) (string, error) {
	e.mu.RLock()
	tpl, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		e.logger.Debug("render failed", zap.String("template_id", id), zap.Error(ErrUnknownTemplate))
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	if err := CheckVariables(tpl, vars); err != nil {
		e.logger.Debug("render failed", zap.String("template_id", id), zap.Error(err))
		return "", err
	}
	return interpolate(tpl.Body, vars), nil
}

// Validate reports whether vars satisfy the variable schema of tpl.
func (e *Engine) Validate(tpl TemplateDefinition, vars Vars) bool {
	return CheckVariables(tpl, vars) == nil
}

// Template returns the definition registered under id.
func (e *Engine) Template(id string) (TemplateDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tpl, ok := e.templates[id]
	if !ok {
		return TemplateDefinition{}, false
	}
	return tpl.Clone(), true
}

// TemplatesByCategory returns the templates in category c in registration order.
// The result is empty, never nil, when nothing is registered.
func (e *Engine) TemplatesByCategory(c Category) []TemplateDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resolve(e.byCategory[c])
}

// TemplatesByAgent returns the templates tagged with agentID in registration order.
func (e *Engine) TemplatesByAgent(agentID string) []TemplateDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resolve(e.byAgent[agentID])
}

// AllTemplates returns every registered template in first-registration order.
func (e *Engine) AllTemplates() []TemplateDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resolve(e.order)
}

// Search returns the templates whose name or description contains query, ignoring case,
// in first-registration order. An empty query returns every template.
func (e *Engine) Search(query string) []TemplateDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]TemplateDefinition, 0)
	for _, id := range e.order {
		if tpl := e.templates[id]; tpl.Matches(query) {
			out = append(out, tpl.Clone())
		}
	}
	return out
}

// Agents returns the agent ids that own at least one template, in first-tag order.
func (e *Engine) Agents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.agents)
}

// Len returns the number of distinct template ids.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.templates)
}

// resolve maps ids to cloned definitions. Caller holds the read lock.
func (e *Engine) resolve(ids []string) []TemplateDefinition {
	out := make([]TemplateDefinition, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.templates[id].Clone())
	}
	return out
}
