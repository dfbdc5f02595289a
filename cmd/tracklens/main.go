package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracklens",
		Short: "Track any topic across the web from a natural-language prompt",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(createCmd())
	root.AddCommand(listCmd())
	root.AddCommand(runTrackerCmd())
	root.AddCommand(resultsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(daemonCmd())

	return root
}

func createCmd() *cobra.Command {
	var (
		owner    string
		public   bool
		schedule string
		runNow   bool
	)

	cmd := &cobra.Command{
		Use:   "create <prompt>",
		Short: "Create a tracker from a natural-language prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args, owner, public, schedule, runNow)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "tracker owner")
	cmd.Flags().BoolVar(&public, "public", false, "make tracker publicly visible")
	cmd.Flags().StringVar(&schedule, "schedule", "1h", "run interval (Go duration)")
	cmd.Flags().BoolVar(&runNow, "run", false, "run the tracker immediately after creating it")
	return cmd
}

func listCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trackers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runTrackerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <tracker-id>",
		Short: "Execute one pipeline run for a tracker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTracker(args[0])
		},
	}
	return cmd
}

func resultsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "results <tracker-id>",
		Short: "Show the latest results feed for a tracker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResults(args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func daemonCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start scheduler and HTTP server together",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
