package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/SteelMorgan/logscan/internal/observability"
	"github.com/SteelMorgan/logscan/internal/rotating"
)

func newWriteCommand(ctx *commandContext) *cobra.Command {
	var suffix string

	cmd := &cobra.Command{
		Use:   "write <base>",
		Short: "Append stdin to a daily rotated file",
		Long:  "Write copies stdin line by line to <base>.<date>, keeping <base> as a symlink to the current day. Several writers may share the same base.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}

			if err := rotating.ValidateSuffixLayout(suffix); err != nil {
				return err
			}

			w := rotating.New(args[0],
				rotating.WithSuffixLayout(suffix),
				rotating.WithLogger(observability.Component("write")),
			)
			n, copyErr := copyLines(w, cmd.InOrStdin())
			logger := observability.Component("write")
			logger.Debug().
				Int("lines", n).
				Str("path", w.Path()).
				Msg("Input copied")

			closeErr := w.Close()
			if copyErr != nil {
				return copyErr
			}
			return closeErr
		},
	}

	cmd.Flags().StringVar(&suffix, "suffix", rotating.DefaultSuffixLayout, "strftime layout of the date suffix")

	return cmd
}

// copyLines writes each input line with a single Write call so concurrent
// writers never interleave inside a line
func copyLines(w io.Writer, r io.Reader) (int, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	lines := 0
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := w.Write(line); werr != nil {
				return lines, fmt.Errorf("write: %w", werr)
			}
			lines++
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, fmt.Errorf("read input: %w", err)
		}
	}
}
