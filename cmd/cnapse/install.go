package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandevgo/cnapse/internal/config"
	"github.com/sandevgo/cnapse/internal/service/installer"
	"github.com/spf13/cobra"
)

var installForce bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Configure the provider, retrieval and surfaces interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		runtimePath := config.GetRuntimePath()
		envPath := filepath.Join(runtimePath, ".env")
		if _, err := os.Stat(envPath); err == nil && !installForce {
			return fmt.Errorf("%s already exists, rerun with --force to overwrite", envPath)
		}

		state, err := installer.RunWizard(runtimePath, installForce)
		switch {
		case errors.Is(err, installer.ErrInterrupted):
			fmt.Fprintln(cmd.OutOrStdout(), "Installation cancelled.")
			return nil
		case errors.Is(err, installer.ErrEnvExists):
			return fmt.Errorf("%w, rerun with --force to overwrite", err)
		case err != nil:
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s (provider %s).\n", runtimePath, state.Provider())
		fmt.Fprintln(cmd.OutOrStdout(), "Run `cnapse start` or `cnapse chat` to begin.")
		return nil
	},
}

func init() {
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "overwrite an existing configuration")
	rootCmd.AddCommand(installCmd)
}
