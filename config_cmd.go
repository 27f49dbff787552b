package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/schema-api/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigCheckCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func newConfigCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			// PersistentPreRunE already loaded and validated it.
			if _, err := os.Stat(resolvedCfgPath); resolvedCfgPath == "" || err != nil {
				fmt.Println("No config file; defaults are valid.")
				return nil
			}

			fmt.Printf("%s is valid.\n", resolvedCfgPath)

			return nil
		},
	}
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if flagJSON {
		shown := *resolvedCfg
		if shown.Auth.JWTSecret != "" {
			shown.Auth.JWTSecret = "(set)"
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(&shown)
	}

	return config.RenderEffective(resolvedCfg, resolvedCfgPath, os.Stdout)
}
