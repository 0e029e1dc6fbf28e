package main

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage accounts and sessions",
	}

	authCmd.AddCommand(newAuthRegisterCommand(ctx))
	authCmd.AddCommand(newAuthLoginCommand(ctx))
	authCmd.AddCommand(newAuthLogoutCommand(ctx))
	authCmd.AddCommand(newAuthWhoamiCommand(ctx))

	return authCmd
}

func newAuthRegisterCommand(ctx *commandContext) *cobra.Command {
	var displayName string
	var password string

	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account on the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(cmd, password)
			if err != nil {
				return err
			}
			resp, err := ctx.client().Register(cmd.Context(), args[0], pw, displayName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", resp.User.Email)
			fmt.Fprintln(cmd.OutOrStdout(), "Log in with `artiquity auth login` to obtain a session token")
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "Display name for the account")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func newAuthLoginCommand(ctx *commandContext) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and print a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(cmd, password)
			if err != nil {
				return err
			}
			resp, err := ctx.client().Login(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s\n", resp.User.Email)
			fmt.Fprintf(out, "Token: %s\n", resp.Token)
			fmt.Fprintln(out, "Export ARTIQUITY_TOKEN or pass --token to authenticated commands")
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func newAuthLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session revoked")
			return nil
		},
	}
}

func newAuthWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the current token",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := ctx.client().Me(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, user)
		},
	}
}

// resolvePassword uses the flag value when given, otherwise prompts on the
// terminal without echoing.
func resolvePassword(cmd *cobra.Command, flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue, nil
	}
	if !isatty.IsTerminal(uintptr(syscall.Stdin)) {
		return "", fmt.Errorf("no password given; pass --password or run interactively")
	}
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
