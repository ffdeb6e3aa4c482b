package shieldscan

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shieldscan/shieldscan/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgOutput     string
	cfgAPIURL     string
	cfgTimeout    time.Duration
	cfgStore      string
	cfgDenyHosts  []string
	cfgNoColor    bool
	cfgNoHistory  bool
	cfgForce      bool
	cfgShowFormat string
)

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a .shieldscan.yml",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	cfgCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&cfgOutput, "output", ".shieldscan.yml", "output file path")
	initCmd.Flags().StringVar(&cfgAPIURL, "engine-url", config.DefaultAPIURL, "scanning engine base URL")
	initCmd.Flags().DurationVar(&cfgTimeout, "scan-timeout", config.DefaultTimeout, "scan request timeout")
	initCmd.Flags().StringVar(&cfgStore, "result-store", config.DefaultStore, "result store backend: file|sqlite|memory")
	initCmd.Flags().StringSliceVar(&cfgDenyHosts, "deny", nil, "hostname globs that may never be scanned")
	initCmd.Flags().BoolVar(&cfgNoColor, "plain", false, "disable color output by default")
	initCmd.Flags().BoolVar(&cfgNoHistory, "disable-history", false, "do not record attempts by default")
	initCmd.Flags().BoolVar(&cfgForce, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
	showCmd.Flags().StringVar(&cfgShowFormat, "format", "yaml", "output format: yaml")
	cfgCmd.AddCommand(showCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(cfgOutput); err == nil && !cfgForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgOutput)
	}
	fc := config.FileConfig{
		APIURL:    strPtr(strings.TrimSpace(cfgAPIURL)),
		Timeout:   strPtr(cfgTimeout.String()),
		Store:     strPtr(cfgStore),
		DenyHosts: cfgDenyHosts,
		NoColor:   boolPtr(cfgNoColor),
		History:   boolPtr(!cfgNoHistory),
	}

	b, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfgOutput, b, 0o644); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Wrote", cfgOutput)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if cfgShowFormat != "yaml" {
		return fmt.Errorf("unsupported format: %s", cfgShowFormat)
	}
	s, err := loadSettings()
	if err != nil {
		return err
	}
	fc := config.FileConfig{
		APIURL:     strPtr(s.APIURL),
		Timeout:    strPtr(s.Timeout.String()),
		Store:      strPtr(s.Store),
		StorePath:  optStrPtr(s.StorePath),
		ReturnAddr: strPtr(s.ReturnAddr),
		DenyHosts:  s.DenyHosts,
		LogLevel:   strPtr(s.LogLevel),
		LogFile:    optStrPtr(s.LogFile),
		NoColor:    boolPtr(s.NoColor),
		History:    boolPtr(s.History),
	}
	b, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}

func strPtr(s string) *string { return &s }
func optStrPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
func boolPtr(v bool) *bool { return &v }
