package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newOffsetsCommand(ctx *commandContext) *cobra.Command {
	offsetsCmd := &cobra.Command{
		Use:   "offsets",
		Short: "Inspect and manage saved offsets",
	}

	offsetsCmd.AddCommand(newOffsetsListCommand(ctx))
	offsetsCmd.AddCommand(newOffsetsResetCommand(ctx))

	return offsetsCmd
}

func newOffsetsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved offsets with the unread bytes of each target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			offsets, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(offsets) == 0 {
				fmt.Fprintln(out, "No saved offsets")
				return nil
			}

			targets := make([]string, 0, len(offsets))
			for target := range offsets {
				targets = append(targets, target)
			}
			sort.Strings(targets)

			rows := make([][]string, 0, len(targets))
			for _, target := range targets {
				pos := offsets[target]
				size, pending := "-", "-"
				// Offset keys usually are the file path; other keys have no size
				if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
					size = strconv.FormatInt(info.Size(), 10)
					if info.Size() >= pos {
						pending = strconv.FormatInt(info.Size()-pos, 10)
					} else {
						pending = "truncated"
					}
				}
				rows = append(rows, []string{target, strconv.FormatInt(pos, 10), size, pending})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Target", "Offset", "Size", "Pending"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newOffsetsResetCommand(ctx *commandContext) *cobra.Command {
	var to int64

	cmd := &cobra.Command{
		Use:   "reset <target>...",
		Short: "Forget saved offsets so the next scan starts from the beginning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, target := range args {
				if cmd.Flags().Changed("to") {
					err = store.Set(cmd.Context(), target, to)
				} else {
					err = store.Delete(cmd.Context(), target)
				}
				if err != nil {
					return fmt.Errorf("reset %s: %w", target, err)
				}
			}
			if err := store.Save(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d offset(s)\n", len(args))
			return nil
		},
	}

	cmd.Flags().Int64Var(&to, "to", 0, "Set the offset to this byte position instead of removing it")

	return cmd
}
