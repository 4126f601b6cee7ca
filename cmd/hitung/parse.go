package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/repr"
	"github.com/spf13/cobra"

	"github.com/szaher/hitung/internal/eval"
	"github.com/szaher/hitung/internal/parser"
)

func newParseCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "parse <expression>",
		Short: "Print the syntax tree of an expression",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := parser.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), expr)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), repr.String(expr, repr.Indent("  ")))
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print the tree as a one-line expression")

	return cmd
}

func newIRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ir <expression>",
		Short: "Print the IR an expression lowers to",
		Long: `Lower an expression in an empty environment and print the resulting
function. Variables must be assigned within the expression itself.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := parser.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fn, err := eval.Lower(expr, eval.NewEnvironment())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), fn)
			return nil
		},
	}
}
