package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hashsafe/hashsafe/internal/config"
)

var forceInit bool

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configInitCmd())

	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "# Configuration\n")
			source := "defaults"
			for _, p := range configPaths() {
				if _, err := os.Stat(p); err == nil {
					source = p
					break
				}
			}
			fmt.Fprintf(w, "# source: %s\n", source)
			fmt.Fprintln(w)
			fmt.Fprint(w, cfg.String())

			if err := cfg.Validate(); err != nil {
				return err
			}
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()

			cfgPath := cfgFile
			if cfgPath == "" {
				cfgPath = config.DefaultPath()
			}
			if cfgPath == "" {
				return errors.New("cannot determine config path; use --config")
			}

			if _, err := os.Stat(cfgPath); err == nil && !forceInit {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}

			if err := cfg.Save(cfgPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", cfgPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	return cmd
}
