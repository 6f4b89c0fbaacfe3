package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"unitymcp/internal/config"
	"unitymcp/internal/paths"
	"unitymcp/internal/version"
)

var (
	configFile  string
	projectFlag string
	bridgeHost  string
	bridgePort  int
	verbosity   int
	quiet       bool

	// appConfig and projectRoot are resolved once per invocation by the root pre-run.
	appConfig   *config.Config
	projectRoot string
)

var rootCmd = &cobra.Command{
	Use:   "unitymcp",
	Short: "unitymcp - Unity compile monitor for MCP clients",
	Long: `unitymcp talks to the Unity editor bridge to report compilation state,
wait for compilation to finish, read compiler errors and warnings, clear the
console and force a recompile. It serves these actions as an MCP tool over
stdio, as an HTTP API, and as CLI commands.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: <project>/.unitymcp/config.json)")
	flags.StringVar(&projectFlag, "project", "", "Unity project root (default: detected from the working directory)")
	flags.StringVar(&bridgeHost, "host", "", "Unity bridge host (overrides bridge.host)")
	flags.IntVar(&bridgePort, "port", 0, "Unity bridge port (overrides bridge.port)")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
}

// loadSettings resolves the project root, loads .env and the config, then
// applies flag overrides.
func loadSettings(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectRoot()
	if err != nil {
		return err
	}
	projectRoot = root

	if err := loadDotEnv(root); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(root, configFile)
	if err != nil {
		return err
	}
	if bridgeHost != "" {
		cfg.Bridge.Host = bridgeHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Bridge.Port = bridgePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	appConfig = cfg
	return nil
}

func resolveProjectRoot() (string, error) {
	if projectFlag != "" {
		return filepath.Abs(projectFlag)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := paths.FindProjectRoot(wd)
	if errors.Is(err, paths.ErrNoProjectRoot) {
		return wd, nil
	}
	return root, err
}

// loadDotEnv loads <root>/.env without overriding variables already set.
func loadDotEnv(root string) error {
	err := godotenv.Load(filepath.Join(root, ".env"))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}
