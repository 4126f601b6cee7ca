package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/szaher/hitung/internal/repl"
)

func newEvalCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "eval [expression...]",
		Short: "Evaluate expressions and print their results",
		Long: `Evaluate each argument, or each non-blank line of --file, in one session
so variables assigned earlier are visible later. The first failure stops
evaluation and exits non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := args
			if file != "" {
				fromFile, err := readLines(file)
				if err != nil {
					return err
				}
				lines = append(lines, fromFile...)
			}
			if len(lines) == 0 {
				return fmt.Errorf("no expressions given")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := newSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close(context.Background()) }()

			for _, line := range lines {
				v, err := s.eval.Evaluate(cmd.Context(), line)
				if err != nil {
					return fmt.Errorf("%q: %w", line, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), repl.FormatValue(v))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read expressions from a file, one per line")

	return cmd
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}
