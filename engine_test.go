package lifeline

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func greetingTemplate() TemplateDefinition {
	return TemplateDefinition{
		ID:       "t1",
		Name:     "Greeting",
		Category: CategoryStrategic,
		Body:     "Hello {{x}} and {{y}}",
		Variables: []VariableSpec{
			{Name: "x", Kind: KindString, Required: true},
		},
	}
}

func crisisTemplate() TemplateDefinition {
	return TemplateDefinition{
		ID:       "crisis-assessment",
		Name:     "Crisis Situation Assessment",
		Category: CategoryCrisis,
		Body:     "Situation: {{crisis_type}}\nSeverity: {{severity}}\nSteps: {{steps}}\nUrgent: {{urgent}}",
		Variables: []VariableSpec{
			{Name: "crisis_type", Kind: KindString, Required: true},
			{Name: "severity", Kind: KindNumber},
			{Name: "steps", Kind: KindArray},
			{Name: "urgent", Kind: KindBoolean},
		},
	}
}

func TestEngine_Render_ConcreteScenario(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(greetingTemplate(), ""))

	out, err := e.Render("t1", Vars{"x": Text("World")})
	require.NoError(t, err)
	assert.Equal(t, "Hello World and {{y}}", out)

	_, err = e.Render("t1", Vars{})
	require.ErrorIs(t, err, ErrInvalidVariables)
	require.ErrorIs(t, err, ErrMissingVariable)
}

func TestEngine_Render_UnknownTemplate(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	_, err := e.Render("does-not-exist", Vars{})
	require.ErrorIs(t, err, ErrUnknownTemplate)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestEngine_Render_AllKinds(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(crisisTemplate(), "phoenix"))

	out, err := e.Render("crisis-assessment", Vars{
		"crisis_type": Text("flood"),
		"severity":    Number(4),
		"steps":       List{"a", "b", "c"},
		"urgent":      Bool(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Situation: flood\nSeverity: 4\nSteps: a, b, c\nUrgent: true", out)
}

func TestEngine_Render_ListJoinedEverywhere(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(TemplateDefinition{
		ID:        "twice",
		Category:  CategoryCreative,
		Body:      "[{{items}}] and again [{{items}}]",
		Variables: []VariableSpec{{Name: "items", Kind: KindArray, Required: true}},
	}, ""))
	out, err := e.Render("twice", Vars{"items": List{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, "[a, b, c] and again [a, b, c]", out)
}

func TestEngine_Render_WrongType(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(crisisTemplate(), ""))

	_, err := e.Render("crisis-assessment", Vars{"crisis_type": Text("fire"), "steps": Number(3)})
	require.ErrorIs(t, err, ErrInvalidVariables)
	require.ErrorIs(t, err, ErrVariableType)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Problems, 1)
	assert.Equal(t, "steps", verr.Problems[0].Variable)
	assert.Equal(t, "crisis-assessment", verr.Template)
}

func TestEngine_Render_ReportsEveryViolation(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(crisisTemplate(), ""))

	_, err := e.Render("crisis-assessment", Vars{"severity": Text("high"), "urgent": List{"yes"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	names := make([]string, 0, len(verr.Problems))
	for _, p := range verr.Problems {
		names = append(names, p.Variable)
	}
	assert.Equal(t, []string{"crisis_type", "severity", "urgent"}, names)
}

func TestEngine_Render_NonRecursive(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(TemplateDefinition{
		ID:       "echo",
		Category: CategoryCommunication,
		Body:     "{{a}} / {{b}}",
		Variables: []VariableSpec{
			{Name: "a", Kind: KindString},
			{Name: "b", Kind: KindString},
		},
	}, ""))
	out, err := e.Render("echo", Vars{"a": Text("{{b}}"), "b": Text("B")})
	require.NoError(t, err)
	assert.Equal(t, "{{b}} / B", out)
}

func TestEngine_Render_Idempotent(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(crisisTemplate(), ""))
	vars := Vars{"crisis_type": Text("outage"), "steps": List{"triage", "restore"}}

	first, err := e.Render("crisis-assessment", vars)
	require.NoError(t, err)
	second, err := e.Render("crisis-assessment", vars)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, List{"triage", "restore"}, vars["steps"])
}

func TestEngine_Render_NoResolvedPlaceholderRemains(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(crisisTemplate(), ""))
	vars := Vars{
		"crisis_type": Text("storm"),
		"severity":    Number(2.5),
		"steps":       List{},
		"urgent":      Bool(false),
	}
	out, err := e.Render("crisis-assessment", vars)
	require.NoError(t, err)
	for name := range vars {
		assert.NotContains(t, out, "{{"+name+"}}")
	}
}

func TestEngine_Render_ExtraKeysIgnored(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(greetingTemplate(), ""))
	out, err := e.Render("t1", Vars{"x": Text("A"), "y": Number(1), "unused": Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, "Hello A and 1", out)
}

func TestEngine_Render_InertBlockMarkers(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(TemplateDefinition{
		ID:        "abilities",
		Category:  CategoryCommunication,
		Body:      "{{#each abilities}}\n- {{this}}\n{{/each}}\nAll: {{abilities}}",
		Variables: []VariableSpec{{Name: "abilities", Kind: KindArray, Required: true}},
	}, ""))
	out, err := e.Render("abilities", Vars{"abilities": List{"Calm", "Decisive"}})
	require.NoError(t, err)
	assert.Equal(t, "{{#each abilities}}\n- {{this}}\n{{/each}}\nAll: Calm, Decisive", out)
}

func TestEngine_TemplateRoundTrip(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	defs := []TemplateDefinition{greetingTemplate(), crisisTemplate()}
	for _, d := range defs {
		require.NoError(t, e.Register(d, ""))
	}
	for _, d := range defs {
		got, ok := e.Template(d.ID)
		require.True(t, ok)
		assert.Equal(t, d, got)
	}
	_, ok := e.Template("missing")
	assert.False(t, ok)
}

func TestEngine_Indices(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	crisis := crisisTemplate()
	require.NoError(t, e.Register(crisis, "phoenix"))
	require.NoError(t, e.Register(greetingTemplate(), ""))

	assert.Equal(t, []TemplateDefinition{crisis}, e.TemplatesByCategory(CategoryCrisis))
	assert.Equal(t, []TemplateDefinition{crisis}, e.TemplatesByAgent("phoenix"))
	assert.Empty(t, e.TemplatesByCategory(CategoryCreative))
	assert.NotNil(t, e.TemplatesByCategory(CategoryCreative))
	assert.Empty(t, e.TemplatesByAgent("nova"))
	assert.Equal(t, []string{"phoenix"}, e.Agents())
	assert.Equal(t, 2, e.Len())
}

func TestEngine_Search(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	defs := []TemplateDefinition{
		{ID: "swot", Name: "SWOT Analysis", Description: "Strengths and weaknesses review", Category: CategoryStrategic},
		{ID: "wheel", Name: "Emotion Wheel Exploration", Description: "Deep dive into emotions", Category: CategoryEmotional},
		{ID: "crisis", Name: "Crisis Situation Assessment", Description: "Rapid ANALYSIS of a crisis", Category: CategoryCrisis},
	}
	for _, d := range defs {
		require.NoError(t, e.Register(d, ""))
	}
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty matches all", "", []string{"swot", "wheel", "crisis"}},
		{"name, case-insensitive", "swot", []string{"swot"}},
		{"description, case-insensitive", "deep DIVE", []string{"wheel"}},
		{"name or description", "analysis", []string{"swot", "crisis"}},
		{"no match", "budget", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := e.Search(tt.query)
			require.NotNil(t, got)
			ids := make([]string, 0, len(got))
			for _, tpl := range got {
				ids = append(ids, tpl.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestEngine_AllTemplates_RegistrationOrder(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, e.Register(TemplateDefinition{ID: id, Category: CategoryResearch}, ""))
	}
	ids := make([]string, 0, 3)
	for _, tpl := range e.AllTemplates() {
		ids = append(ids, tpl.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestEngine_Register_DuplicateID(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	first := TemplateDefinition{ID: "dup", Category: CategoryStrategic, Body: "first"}
	second := TemplateDefinition{ID: "dup", Category: CategoryStrategic, Body: "second"}
	require.NoError(t, e.Register(TemplateDefinition{ID: "other", Category: CategoryStrategic}, ""))
	require.NoError(t, e.Register(first, "orion"))
	require.NoError(t, e.Register(second, "orion"))

	got, ok := e.Template("dup")
	require.True(t, ok)
	assert.Equal(t, "second", got.Body, "last registration wins")

	all := e.AllTemplates()
	require.Len(t, all, 2)
	assert.Equal(t, "dup", all[1].ID, "replacement keeps original position")

	strategic := e.TemplatesByCategory(CategoryStrategic)
	require.Len(t, strategic, 2, "category bucket is de-duplicated")
	assert.Equal(t, "second", strategic[1].Body)

	byAgent := e.TemplatesByAgent("orion")
	require.Len(t, byAgent, 1, "agent bucket is de-duplicated")
	assert.Equal(t, "second", byAgent[0].Body)
}

func TestEngine_Register_DuplicateIDMovesCategory(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	require.NoError(t, e.Register(TemplateDefinition{ID: "m", Category: CategoryCrisis}, ""))
	require.NoError(t, e.Register(TemplateDefinition{ID: "m", Category: CategoryResearch}, ""))
	assert.Empty(t, e.TemplatesByCategory(CategoryCrisis))
	require.Len(t, e.TemplatesByCategory(CategoryResearch), 1)
}

func TestEngine_Register_SameTemplateManyAgents(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	tpl := greetingTemplate()
	require.NoError(t, e.Register(tpl, "orion"))
	require.NoError(t, e.Register(tpl, "luna"))
	assert.Len(t, e.TemplatesByAgent("orion"), 1)
	assert.Len(t, e.TemplatesByAgent("luna"), 1)
	assert.Equal(t, []string{"orion", "luna"}, e.Agents())
	assert.Equal(t, 1, e.Len())
}

func TestEngine_Register_DefensiveCopy(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	tpl := crisisTemplate()
	tpl.Variables[2].Default = List{"stabilize"}
	require.NoError(t, e.Register(tpl, ""))

	tpl.Variables[0].Name = "mutated"
	tpl.Variables[2].Default.(List)[0] = "mutated"

	got, ok := e.Template("crisis-assessment")
	require.True(t, ok)
	assert.Equal(t, "crisis_type", got.Variables[0].Name)
	assert.Equal(t, List{"stabilize"}, got.Variables[2].Default)

	got.Variables[0].Name = "mutated again"
	again, _ := e.Template("crisis-assessment")
	assert.Equal(t, "crisis_type", again.Variables[0].Name)
}

func TestEngine_Register_PermissiveByDefault(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	malformed := TemplateDefinition{
		ID:       "loose",
		Category: Category("unknown"),
		Variables: []VariableSpec{
			{Name: "a", Kind: KindString},
			{Name: "a", Kind: KindNumber},
		},
	}
	require.NoError(t, e.Register(malformed, ""))
	_, ok := e.Template("loose")
	assert.True(t, ok)
}

func TestEngine_Register_Strict(t *testing.T) {
	t.Parallel()
	e := NewEngine(WithStrictRegistration())
	tests := []struct {
		name string
		tpl  TemplateDefinition
	}{
		{"empty id", TemplateDefinition{Category: CategoryCrisis}},
		{"unknown category", TemplateDefinition{ID: "a", Category: "gossip"}},
		{"duplicate variable", TemplateDefinition{ID: "b", Category: CategoryCrisis, Variables: []VariableSpec{
			{Name: "v", Kind: KindString}, {Name: "v", Kind: KindString},
		}}},
		{"empty variable name", TemplateDefinition{ID: "c", Category: CategoryCrisis, Variables: []VariableSpec{
			{Kind: KindString},
		}}},
		{"unknown kind", TemplateDefinition{ID: "d", Category: CategoryCrisis, Variables: []VariableSpec{
			{Name: "v", Kind: "object"},
		}}},
		{"default kind mismatch", TemplateDefinition{ID: "e", Category: CategoryCrisis, Variables: []VariableSpec{
			{Name: "v", Kind: KindNumber, Default: Text("3")},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Register(tt.tpl, "")
			require.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
	assert.Equal(t, 0, e.Len())
	require.NoError(t, e.Register(crisisTemplate(), ""))
}

func TestEngine_Register_MaxBodyBytes(t *testing.T) {
	t.Parallel()
	e := NewEngine(WithMaxBodyBytes(8))
	err := e.Register(TemplateDefinition{ID: "big", Category: CategoryCrisis, Body: strings.Repeat("x", 9)}, "")
	require.ErrorIs(t, err, ErrInvalidTemplate)
	require.NoError(t, e.Register(TemplateDefinition{ID: "small", Category: CategoryCrisis, Body: "12345678"}, ""))
}

func TestEngine_Validate(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	tpl := crisisTemplate()
	tests := []struct {
		name string
		vars Vars
		want bool
	}{
		{"required only", Vars{"crisis_type": Text("x")}, true},
		{"missing required", Vars{"severity": Number(1)}, false},
		{"number as string", Vars{"crisis_type": Text("x"), "severity": Text("1")}, false},
		{"bool as string", Vars{"crisis_type": Text("x"), "urgent": Text("true")}, false},
		{"string as list", Vars{"crisis_type": List{"x"}}, false},
		{"empty list ok", Vars{"crisis_type": Text("x"), "steps": List{}}, true},
		{"nil value counts as absent", Vars{"crisis_type": Text("x"), "severity": nil}, true},
		{"nil required value", Vars{"crisis_type": nil}, false},
		{"extra keys", Vars{"crisis_type": Text("x"), "extra": Number(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.Validate(tpl, tt.vars))
		})
	}
}

func TestEngine_Render_DefaultsNotApplied(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	tpl := TemplateDefinition{
		ID:        "defaults",
		Category:  CategoryAnalytical,
		Body:      "Window: {{window}}",
		Variables: []VariableSpec{{Name: "window", Kind: KindNumber, Default: Number(30)}},
	}
	require.NoError(t, e.Register(tpl, ""))

	out, err := e.Render("defaults", Vars{})
	require.NoError(t, err)
	assert.Equal(t, "Window: {{window}}", out)

	out, err = e.Render("defaults", tpl.ApplyDefaults(nil))
	require.NoError(t, err)
	assert.Equal(t, "Window: 30", out)
}

func TestEngine_Logging(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.DebugLevel)
	e := NewEngine(WithLogger(zap.New(core)))
	require.NoError(t, e.Register(greetingTemplate(), "orion"))
	_, err := e.Render("nope", nil)
	require.Error(t, err)

	require.Equal(t, 1, logs.FilterMessage("template registered").Len())
	entry := logs.FilterMessage("template registered").All()[0]
	assert.Equal(t, "t1", entry.ContextMap()["template_id"])
	assert.Equal(t, "orion", entry.ContextMap()["agent_id"])
	assert.Equal(t, 1, logs.FilterMessage("render failed").Len())
}

func TestEngine_ConcurrentUse(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tpl := greetingTemplate()
			tpl.ID = fmt.Sprintf("t%d", i)
			_ = e.Register(tpl, "agent")
			_, _ = e.Render(tpl.ID, Vars{"x": Text("go")})
			_ = e.AllTemplates()
			_ = e.TemplatesByAgent("agent")
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, e.Len())
	assert.Len(t, e.TemplatesByAgent("agent"), 8)
}
