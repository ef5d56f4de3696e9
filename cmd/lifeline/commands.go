package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/lifeline-agents/lifeline"
	"github.com/lifeline-agents/lifeline/internal/cast"

	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "lifeline",
		Short:         "Browse and render LifeLine Agents templates",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAgentsCmd(a), newTemplatesCmd(a), newShowCmd(a), newRenderCmd(a))
	return root
}

func newAgentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the persona roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			personas := a.catalog.Personas()
			rows := make([][]string, 0, len(personas))
			for _, p := range personas {
				rows = append(rows, []string{
					p.ID, p.Name, p.Title, p.Status,
					strconv.Itoa(len(a.engine.TemplatesByAgent(p.ID))),
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "TITLE", "STATUS", "TEMPLATES"}, rows)
		},
	}
}

func newTemplatesCmd(a *app) *cobra.Command {
	var category, agent, search string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List registered templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var list []lifeline.TemplateDefinition
			switch {
			case category != "" && agent != "":
				return fmt.Errorf("--category and --agent are mutually exclusive")
			case category != "":
				c, err := lifeline.ParseCategory(category)
				if err != nil {
					return err
				}
				list = a.engine.TemplatesByCategory(c)
			case agent != "":
				list = a.engine.TemplatesByAgent(agent)
			case search != "":
				list = a.engine.Search(search)
			default:
				list = a.engine.AllTemplates()
			}
			list = slices.DeleteFunc(list, func(tpl lifeline.TemplateDefinition) bool {
				return !tpl.Matches(search)
			})
			rows := make([][]string, 0, len(list))
			for _, tpl := range list {
				rows = append(rows, []string{tpl.ID, string(tpl.Category), tpl.Name, strconv.Itoa(len(tpl.Variables))})
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "CATEGORY", "NAME", "VARIABLES"}, rows)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only templates in this category")
	cmd.Flags().StringVar(&agent, "agent", "", "only templates owned by this agent")
	cmd.Flags().StringVar(&search, "search", "", "only templates whose name or description contains this text (case-insensitive)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <template-id>",
		Short: "Show template metadata and variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, ok := a.engine.Template(args[0])
			if !ok {
				return fmt.Errorf("%w: %q", lifeline.ErrUnknownTemplate, args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", tpl.ID)
			fmt.Fprintf(out, "Name:        %s\n", tpl.Name)
			fmt.Fprintf(out, "Category:    %s\n", tpl.Category)
			fmt.Fprintf(out, "Description: %s\n", tpl.Description)
			fmt.Fprintf(out, "Placeholders: %s\n\n", strings.Join(lifeline.Placeholders(tpl.Body), ", "))
			rows := make([][]string, 0, len(tpl.Variables))
			for _, v := range tpl.Variables {
				def := "-"
				if v.Default != nil {
					def = v.Default.String()
				}
				rows = append(rows, []string{v.Name, string(v.Kind), formatYesNo(v.Required), def, v.Description})
			}
			return writeTable(out, []string{"VARIABLE", "TYPE", "REQUIRED", "DEFAULT", "DESCRIPTION"}, rows)
		},
	}
}

type renderFlags struct {
	texts    []string
	numbers  []string
	bools    []string
	lists    []string
	defaults bool
}

func newRenderCmd(a *app) *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render <template-id>",
		Short: "Render a template with the given variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := f.vars()
			if err != nil {
				return err
			}
			if f.defaults {
				if tpl, ok := a.engine.Template(args[0]); ok {
					vars = tpl.ApplyDefaults(vars)
				}
			}
			text, err := a.engine.Render(args[0], vars)
			var verr *lifeline.ValidationError
			if errors.As(err, &verr) {
				writeValidationError(cmd.ErrOrStderr(), verr)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&f.texts, "var", nil, "string variable as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.numbers, "num", nil, "number variable as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.bools, "bool", nil, "boolean variable as key=true|false (repeatable)")
	cmd.Flags().StringArrayVar(&f.lists, "list", nil, "list variable as key=a,b,c (repeatable)")
	cmd.Flags().BoolVar(&f.defaults, "defaults", false, "fill absent variables with declared defaults")
	return cmd
}

// vars builds the bag from flags. A key given twice keeps the last value.
func (f renderFlags) vars() (lifeline.Vars, error) {
	vars := make(lifeline.Vars)
	for _, kv := range f.texts {
		k, v, err := splitAssignment("--var", kv)
		if err != nil {
			return nil, err
		}
		vars[k] = lifeline.Text(v)
	}
	for _, kv := range f.numbers {
		k, v, err := splitAssignment("--num", kv)
		if err != nil {
			return nil, err
		}
		n, ok := cast.ParseNumber(v)
		if !ok {
			return nil, fmt.Errorf("--num %s: %q is not a number", k, v)
		}
		vars[k] = lifeline.Number(n)
	}
	for _, kv := range f.bools {
		k, v, err := splitAssignment("--bool", kv)
		if err != nil {
			return nil, err
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("--bool %s: %q is not a boolean", k, v)
		}
		vars[k] = lifeline.Bool(b)
	}
	for _, kv := range f.lists {
		k, v, err := splitAssignment("--list", kv)
		if err != nil {
			return nil, err
		}
		vars[k] = lifeline.List(cast.SplitList(v))
	}
	return vars, nil
}

func splitAssignment(flag, kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("%s: expected key=value, got %q", flag, kv)
	}
	return k, v, nil
}

// writeValidationError prints one line per violation. main skips its own
// "Error:" line for these so the problems are not reported twice.
func writeValidationError(w io.Writer, verr *lifeline.ValidationError) {
	fmt.Fprintf(w, "template %q rejected the variables:\n", verr.Template)
	for _, p := range verr.Problems {
		fmt.Fprintf(w, "  - %s: %v\n", p.Variable, p.Err)
	}
}
