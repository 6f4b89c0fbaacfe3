package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"unitymcp/internal/compile"
	"unitymcp/internal/envelope"
)

// errFailedResult makes the process exit 1 after a failed result was printed.
var errFailedResult = errors.New("action failed")

var (
	compileFormat     string
	compileTimeout    int
	compileStackTrace bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Inspect and control Unity script compilation",
	Long: `Run compile monitor actions against the Unity editor.

Examples:
  unitymcp compile status
  unitymcp compile wait --timeout 120
  unitymcp compile errors --stack-trace --format json
  unitymcp compile recompile && unitymcp compile wait`,
}

var compileStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show compilation state and current diagnostics",
	RunE:  compileRunner(compile.ActionGetStatus),
}

var compileWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the editor stops compiling",
	RunE:  compileRunner(compile.ActionWaitForComplete),
}

var compileErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List compiler errors",
	RunE:  compileRunner(compile.ActionGetErrors),
}

var compileWarningsCmd = &cobra.Command{
	Use:   "warnings",
	Short: "List compiler warnings",
	RunE:  compileRunner(compile.ActionGetWarnings),
}

var compileClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the editor console",
	RunE:  compileRunner(compile.ActionClearErrors),
}

var compileRecompileCmd = &cobra.Command{
	Use:   "recompile",
	Short: "Refresh assets to trigger a recompile",
	RunE:  compileRunner(compile.ActionForceRecompile),
}

func init() {
	compileCmd.PersistentFlags().StringVar(&compileFormat, "format", string(FormatHuman), "Output format (json, yaml, human)")
	compileWaitCmd.Flags().IntVar(&compileTimeout, "timeout", 30, "Seconds to wait before giving up")
	compileErrorsCmd.Flags().BoolVar(&compileStackTrace, "stack-trace", false, "Include stack traces")

	compileCmd.AddCommand(compileStatusCmd, compileWaitCmd, compileErrorsCmd,
		compileWarningsCmd, compileClearCmd, compileRecompileCmd)
	rootCmd.AddCommand(compileCmd)
}

func compileRunner(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		format, err := ParseFormat(compileFormat)
		if err != nil {
			return err
		}

		var params compile.Params
		if cmd.Flags().Changed("timeout") {
			params = params.WithTimeout(compileTimeout)
		}
		params.IncludeStackTrace = compileStackTrace

		ctx, stop := signalContext()
		defer stop()

		logger := newCLILogger()
		dispatcher := newDispatcher(appConfig, newBridge(appConfig, logger), logger)
		return printResult(cmd, dispatcher.Dispatch(ctx, action, params), format)
	}
}

func printResult(cmd *cobra.Command, result *envelope.Result, format OutputFormat) error {
	output, err := FormatResult(result, format)
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	if !result.Success {
		return errFailedResult
	}
	return nil
}
