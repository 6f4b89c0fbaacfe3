package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"unitymcp/internal/config"
	"unitymcp/internal/paths"
)

var (
	configFormat string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage unitymcp configuration",
	Long: `View and create the configuration stored in <project>/.unitymcp/config.json.

Every key can be overridden with an environment variable prefixed with
UNITY_MCP_, for example UNITY_MCP_BRIDGE_PORT=6401. A .env file in the
project root is loaded first.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration into the project",
	RunE:  runConfigInit,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", string(FormatHuman), "Output format (json, yaml, human)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigShowResponse is the output of `config show`
type ConfigShowResponse struct {
	ProjectRoot string         `json:"projectRoot"`
	ConfigPath  string         `json:"configPath,omitempty"`
	Config      *config.Config `json:"config"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(configFormat)
	if err != nil {
		return err
	}

	resp := ConfigShowResponse{ProjectRoot: projectRoot, Config: appConfig}
	switch {
	case configFile != "":
		resp.ConfigPath = configFile
	default:
		if path := paths.GetProjectConfigPath(projectRoot); fileExists(path) {
			resp.ConfigPath = path
		}
	}

	output, err := FormatValue(resp, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := paths.GetProjectConfigPath(projectRoot)
	if fileExists(path) && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	written, err := config.DefaultConfig().Save(projectRoot)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", okMark("✓"), written)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
