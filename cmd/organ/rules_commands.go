package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"organ/internal/media"
	"organ/internal/store"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage routing rules",
	}
	cmd.AddCommand(
		newRulesListCommand(ctx),
		newRulesAddCommand(ctx),
		newRulesShowCommand(ctx),
		newRulesRemoveCommand(ctx),
		newRulesEnableCommand(ctx, true),
		newRulesEnableCommand(ctx, false),
	)
	return cmd
}

func newRulesListCommand(ctx *commandContext) *cobra.Command {
	var enabledOnly bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List routing rules in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				ruleList, err := st.ListRules(cmd.Context(), enabledOnly)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, ruleList)
				}
				if len(ruleList) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No rules configured")
					return nil
				}
				rows := make([][]string, 0, len(ruleList))
				for _, rule := range ruleList {
					rows = append(rows, []string{
						rule.ID,
						rule.Name,
						strconv.Itoa(rule.Priority),
						string(rule.MediaType),
						string(rule.StorageType),
						strconv.Itoa(len(rule.Conditions)),
						rule.TargetPath,
						yesNo(rule.Enabled),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Priority", "Type", "Backend", "Conditions", "Target", "Enabled"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Show enabled rules only")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit rules as JSON")
	return cmd
}

// parseRuleCondition parses "field:operator:value" into a condition.
// Values for the in and between operators are comma-separated; numeric
// values are stored as numbers so range operators can compare them.
func parseRuleCondition(spec string) (store.RuleCondition, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return store.RuleCondition{}, fmt.Errorf("condition %q must be field:operator:value", spec)
	}
	field := strings.TrimSpace(parts[0])
	operator := strings.ToLower(strings.TrimSpace(parts[1]))
	raw := strings.TrimSpace(parts[2])
	if field == "" || raw == "" {
		return store.RuleCondition{}, fmt.Errorf("condition %q must be field:operator:value", spec)
	}

	coerce := func(text string) any {
		if number, err := strconv.ParseFloat(text, 64); err == nil {
			return number
		}
		return text
	}

	switch operator {
	case "equals", "contains", "matches":
		return store.RuleCondition{Field: field, Operator: operator, Value: raw}, nil
	case "gte", "lte":
		return store.RuleCondition{Field: field, Operator: operator, Value: coerce(raw)}, nil
	case "in", "between":
		pieces := strings.Split(raw, ",")
		values := make([]any, 0, len(pieces))
		for _, piece := range pieces {
			values = append(values, coerce(strings.TrimSpace(piece)))
		}
		if operator == "between" && len(values) != 2 {
			return store.RuleCondition{}, fmt.Errorf("between condition %q needs exactly two values", spec)
		}
		return store.RuleCondition{Field: field, Operator: operator, Value: values}, nil
	default:
		return store.RuleCondition{}, fmt.Errorf("unknown operator %q (use equals, contains, in, matches, between, gte, lte)", operator)
	}
}

func newRulesAddCommand(ctx *commandContext) *cobra.Command {
	var (
		priority       int
		mediaTypeFlag  string
		backendFlag    string
		targetPath     string
		namingTemplate string
		conditions     []string
		disabled       bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a routing rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule := &store.Rule{
				Name:           args[0],
				Priority:       priority,
				MediaType:      media.ParseType(mediaTypeFlag),
				TargetPath:     targetPath,
				NamingTemplate: namingTemplate,
				Enabled:        !disabled,
			}
			if backendFlag != "" {
				rule.StorageType = media.ParseBackend(backendFlag)
			}
			for _, spec := range conditions {
				condition, err := parseRuleCondition(spec)
				if err != nil {
					return err
				}
				rule.Conditions = append(rule.Conditions, condition)
			}
			return ctx.withStore(func(st *store.Store) error {
				created, err := st.CreateRule(cmd.Context(), rule)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created rule %s (%s)\n", created.Name, created.ID)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&priority, "priority", "p", 100, "Match priority, lower wins")
	cmd.Flags().StringVarP(&mediaTypeFlag, "type", "t", "all", "Media type filter (movie, tv, all)")
	cmd.Flags().StringVar(&backendFlag, "backend", "all", "Storage backend filter (local, clouddrive, webdav, all)")
	cmd.Flags().StringVar(&targetPath, "target", "", "Destination base path (required)")
	cmd.Flags().StringVar(&namingTemplate, "template", "", "Naming template applied by this rule")
	cmd.Flags().StringArrayVar(&conditions, "condition", nil, "Condition as field:operator:value, repeatable")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the rule disabled")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newRulesShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one rule as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				rule, err := st.GetRule(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if rule == nil {
					return fmt.Errorf("rule %s not found", args[0])
				}
				return writeJSON(cmd, rule)
			})
		},
	}
	return cmd
}

func newRulesRemoveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.DeleteRule(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("rule %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func newRulesEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use, short, verb := "enable <id>", "Enable a rule", "enabled"
	if !enable {
		use, short, verb = "disable <id>", "Disable a rule", "disabled"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				if err := st.SetRuleEnabled(cmd.Context(), args[0], enable); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %s %s\n", args[0], verb)
				return nil
			})
		},
	}
	return cmd
}
