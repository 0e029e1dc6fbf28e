package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var serverFlag string
	var configFlag string
	var tokenFlag string

	ctx := newCommandContext(&serverFlag, &configFlag, &tokenFlag)

	rootCmd := &cobra.Command{
		Use:           "artiquity",
		Short:         "Artiquity CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Address of the artiquityd HTTP API")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Session token for authenticated requests")

	rootCmd.AddCommand(newAuthCommand(ctx))
	rootCmd.AddCommand(newProjectCommand(ctx))
	rootCmd.AddCommand(newLicenseCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newHealthCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
