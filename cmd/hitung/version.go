package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/szaher/hitung/internal/eval"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hitung version %s (backends: %s)\n", version, strings.Join(eval.Backends(), ", "))
		},
	}
}
