package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var jobsFlag string

	ctx := newCommandContext(&jobsFlag)

	rootCmd := &cobra.Command{
		Use:           "logscan",
		Short:         "Incremental log scanner",
		Long:          "logscan reads log files from the last saved offset, emits lines matching configured patterns within a time window and saves the new offset.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&jobsFlag, "jobs", "j", "", "Jobs file path (overrides JOBS_FILE)")

	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newOffsetsCommand(ctx))
	rootCmd.AddCommand(newWriteCommand(ctx))

	return rootCmd
}
