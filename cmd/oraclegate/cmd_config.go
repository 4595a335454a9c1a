package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd, toolsCmd)
	configCmd.AddCommand(configShowCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Secrets never reach stdout.
		if cfg.Auth.SharedSecret != "" {
			cfg.Auth.SharedSecret = "***"
		}
		redacted := make(map[string]string, len(cfg.Auth.APIKeys))
		for range cfg.Auth.APIKeys {
			redacted[fmt.Sprintf("***%d", len(redacted)+1)] = "***"
		}
		cfg.Auth.APIKeys = redacted

		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List configured tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		names := make([]string, 0, len(cfg.Tools))
		for name := range cfg.Tools {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			tool := cfg.Tools[name]
			class := tool.RouteClass
			if class == "" {
				class = "general"
			}
			fmt.Fprintf(os.Stdout, "%s\t[%s]\t%s\n", name, class, tool.Description)
		}
		return nil
	},
}
