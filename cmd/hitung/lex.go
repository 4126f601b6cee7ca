package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/szaher/hitung/internal/parser"
)

func newLexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lex <expression>",
		Short: "Print the tokens of an expression",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, tok := range parser.Lex(strings.Join(args, " ")) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", tok.Column, tok)
			}
			return nil
		},
	}
}
