package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"artiquity/internal/licensing"
	"artiquity/internal/logging"
	"artiquity/internal/store"
)

func newLicenseCommand(ctx *commandContext) *cobra.Command {
	licenseCmd := &cobra.Command{
		Use:   "license",
		Short: "Embed and verify RSL licenses",
	}

	licenseCmd.AddCommand(newLicenseEmbedCommand(ctx))
	licenseCmd.AddCommand(newLicenseVerifyCommand(ctx))
	licenseCmd.AddCommand(newLicenseExtractCommand(ctx))
	licenseCmd.AddCommand(newLicenseListCommand(ctx))

	return licenseCmd
}

func newLicenseEmbedCommand(ctx *commandContext) *cobra.Command {
	var licenseArg string
	var noRecord bool

	cmd := &cobra.Command{
		Use:   "embed <file>...",
		Short: "Embed license metadata into files in place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := resolveLicenseRequest(licenseArg)
			if err != nil {
				return err
			}

			var st *store.Store
			if !noRecord {
				st, err = store.Open(cfg)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer st.Close()
			}

			svc := licensing.NewService(cfg, st, logging.NewNop())
			out := cmd.OutOrStdout()
			for _, path := range args {
				lic, err := svc.Build(req)
				if err != nil {
					return err
				}
				outcome, err := svc.EmbedFile(cmd.Context(), path, lic)
				if err != nil {
					return fmt.Errorf("embed %s: %w", path, err)
				}
				if outcome.Sidecar {
					fmt.Fprintf(out, "%s: license written to sidecar %s\n", path, outcome.Path)
				} else {
					fmt.Fprintf(out, "%s: license %s embedded (%s)\n", path, outcome.License.ID, outcome.Format)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&licenseArg, "license", "", "License fields as JSON (or @file); configured defaults fill the rest")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Skip recording the embed in the database")
	return cmd
}

func newLicenseVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify the embedded license in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			svc := licensing.NewService(cfg, nil, logging.NewNop())
			lic, digest, err := svc.VerifyBytes(data, args[0])
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Invalid: %v\n", err)
				return fmt.Errorf("license verification failed")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Valid license %s from %s\n", lic.ID, lic.Licensor)
			fmt.Fprintf(out, "Digest: %s\n", digest)
			return nil
		},
	}
}

func newLicenseExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the embedded license as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc := licensing.NewService(cfg, nil, logging.NewNop())
			lic, err := svc.ExtractFile(args[0])
			if err != nil {
				return err
			}
			encoded, err := lic.EncodeJSON()
			if err != nil {
				return err
			}
			var payload any
			if err := json.Unmarshal(encoded, &payload); err != nil {
				return err
			}
			return writeJSON(cmd, payload)
		},
	}
}

func newLicenseListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded license embeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			licenses, err := ctx.client().Licenses(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(licenses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No licenses recorded yet")
				return nil
			}
			rows := make([][]string, 0, len(licenses))
			for _, lic := range licenses {
				rows = append(rows, []string{lic.ID, lic.FileName, lic.Format, yesNo(lic.Sidecar), lic.EmbeddedAt})
			}
			table := renderTable(
				[]string{"ID", "File", "Format", "Sidecar", "Embedded"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries to show")
	return cmd
}

// resolveLicenseRequest parses a --license value, supporting @file references.
func resolveLicenseRequest(raw string) (licensing.Request, error) {
	var req licensing.Request
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return req, nil
	}
	if strings.HasPrefix(trimmed, "@") {
		data, err := os.ReadFile(trimmed[1:])
		if err != nil {
			return req, fmt.Errorf("read license file: %w", err)
		}
		trimmed = string(data)
	}
	if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
		return req, fmt.Errorf("parse license JSON: %w", err)
	}
	return req, nil
}
