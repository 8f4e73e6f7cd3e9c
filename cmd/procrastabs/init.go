package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/b/procrastabs/pkg/config"
	"github.com/b/procrastabs/pkg/paths"
)

var initForce bool

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with every default spelled out",
		Long: `Write a config file holding the defaults, ready to edit.

Without --config the file goes to the default location. An existing file
is left alone unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := writeDefaultConfig(cfgFile, initForce)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	return cmd
}

func writeDefaultConfig(path string, force bool) (string, error) {
	if path == "" {
		dir, err := paths.EnsureConfigDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, filepath.Base(config.DefaultConfigPath()))
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if err := config.SaveConfig(path, config.Default()); err != nil {
		return "", err
	}
	return path, nil
}
