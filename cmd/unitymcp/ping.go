package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pingTimeout time.Duration

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the Unity editor bridge responds",
	RunE:  runPing,
}

func init() {
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "How long to wait for the bridge")
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	bridge := newBridge(appConfig, newCLILogger())
	start := time.Now()
	if err := bridge.Ping(ctx); err != nil {
		return fmt.Errorf("unity bridge at %s is not responding: %w", bridge.Addr(), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Unity editor at %s is responding (%dms)\n",
		okMark("✓"), bridge.Addr(), time.Since(start).Milliseconds())
	return nil
}
