package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/4xmen/gapchat/pkg/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "gapchat",
		Short:         "Chat server with direct and group conversations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the web server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg)
		},
	})
	root.AddCommand(newStatusCmd(cfg))

	return root
}

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
