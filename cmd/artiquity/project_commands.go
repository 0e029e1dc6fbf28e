package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"artiquity/internal/api"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Run the campaign wizard",
	}

	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectInputsCommand(ctx))
	projectCmd.AddCommand(newProjectStepCommand(ctx, "capsule", "Generate the identity capsule",
		func(c *api.Client) stepFuncs {
			return stepFuncs{generate: c.GenerateCapsule, fetch: c.Capsule}
		}))
	projectCmd.AddCommand(newProjectStepCommand(ctx, "dashboard", "Generate the synchronicity dashboard",
		func(c *api.Client) stepFuncs {
			return stepFuncs{generate: c.GenerateDashboard, fetch: c.Dashboard}
		}))
	projectCmd.AddCommand(newProjectStepCommand(ctx, "campaign", "Generate the campaign",
		func(c *api.Client) stepFuncs {
			return stepFuncs{generate: c.GenerateCampaign, fetch: c.Campaign}
		}))
	projectCmd.AddCommand(newProjectCompleteCommand(ctx))
	projectCmd.AddCommand(newProjectRetryCommand(ctx))
	projectCmd.AddCommand(newProjectDeleteCommand(ctx))

	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var inputsArg string

	cmd := &cobra.Command{
		Use:   "create <brand-name>",
		Short: "Start a new wizard project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := resolveInputs(inputsArg)
			if err != nil {
				return err
			}
			project, err := ctx.client().CreateProject(cmd.Context(), args[0], inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", project.ID, project.BrandName)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputsArg, "inputs", "", "Wizard inputs as JSON (or @file to read from disk)")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List wizard projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := ctx.client().Projects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects yet")
				return nil
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{p.ID, p.BrandName, p.Status, p.UpdatedAt})
			}
			table := renderTable(
				[]string{"ID", "Brand", "Status", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.client().Project(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, project)
		},
	}
}

func newProjectInputsCommand(ctx *commandContext) *cobra.Command {
	var brandName string
	var inputsArg string

	cmd := &cobra.Command{
		Use:   "inputs <project-id>",
		Short: "Update a project's brand name and wizard inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := resolveInputs(inputsArg)
			if err != nil {
				return err
			}
			project, err := ctx.client().UpdateInputs(cmd.Context(), args[0], brandName, inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated project %s\n", project.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&brandName, "brand", "", "New brand name")
	cmd.Flags().StringVar(&inputsArg, "inputs", "", "Wizard inputs as JSON (or @file to read from disk)")
	return cmd
}

type stepFuncs struct {
	generate func(ctx context.Context, id string) (*api.Artifact, error)
	fetch    func(ctx context.Context, id string) (*api.Artifact, error)
}

func newProjectStepCommand(ctx *commandContext, step, short string, bind func(*api.Client) stepFuncs) *cobra.Command {
	var fetchOnly bool

	cmd := &cobra.Command{
		Use:   step + " <project-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			funcs := bind(ctx.client())
			run := funcs.generate
			if fetchOnly {
				run = funcs.fetch
			}
			artifact, err := run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if artifact.Fallback {
				fmt.Fprintln(out, "Warning: model output was unusable; a fallback payload was generated")
			}
			var payload any
			if err := json.Unmarshal(artifact.Payload, &payload); err != nil {
				return fmt.Errorf("decode artifact payload: %w", err)
			}
			return writeJSON(cmd, payload)
		},
	}

	cmd.Flags().BoolVar(&fetchOnly, "fetch", false, "Fetch the latest artifact without regenerating")
	return cmd
}

func newProjectCompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <project-id>",
		Short: "Mark a campaign-ready project as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.client().CompleteProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s completed\n", project.ID)
			return nil
		},
	}
}

func newProjectRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <project-id>",
		Short: "Reset a failed project back to draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.client().RetryProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s reset to %s\n", project.ID, project.Status)
			return nil
		},
	}
}

func newProjectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Project deleted")
			return nil
		},
	}
}

// resolveInputs parses an --inputs value, supporting @file references.
func resolveInputs(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "@") {
		data, err := os.ReadFile(trimmed[1:])
		if err != nil {
			return nil, fmt.Errorf("read inputs file: %w", err)
		}
		trimmed = strings.TrimSpace(string(data))
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, fmt.Errorf("inputs must be valid JSON")
	}
	return json.RawMessage(trimmed), nil
}
