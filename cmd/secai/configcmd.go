package secai

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/secai/secai/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgOutput string
	cfgGlobal bool
	cfgForce  bool
)

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented .secai.yml",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().StringVar(&cfgOutput, "output", ".secai.yml", "output file path")
	initCmd.Flags().BoolVar(&cfgGlobal, "global", false, "write the global config instead")
	initCmd.Flags().BoolVar(&cfgForce, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective file configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := cfgOutput
	if cfgGlobal {
		p, err := config.GlobalPath()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !cfgForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}
