// Package lifeline provides the template engine behind LifeLine Agents.
// It registers named templates indexed by id, category and owning agent,
// validates variable bags against each template's declared variables, and
// substitutes flat {{name}} placeholders with string, number, boolean or
// list values.
package lifeline
