package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/pkgview/cli"
	"github.com/grovetools/pkgview/config"
	"github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/logging"
	"github.com/grovetools/pkgview/schema"
	"github.com/grovetools/pkgview/tui/components/table"
)

// NewConfigCmd prints the resolved configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the resolved configuration",
		Long: `Shows the configuration after defaults, environment expansion and path
resolution have been applied. This is useful for debugging which catalog,
settings file and projects a surface uses.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, table.StatusTable([][]string{
				{"Source", cfg.Path()},
				{"Catalog", cfg.Catalog.Path},
				{"Solution", cfg.Solution.Name},
				{"Projects", fmt.Sprint(len(cfg.Solution.Projects))},
				{"Sources", fmt.Sprint(len(cfg.EnabledSources()))},
			}))

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "---")
			fmt.Fprint(out, string(data))
			return nil
		},
	}
	cmd.AddCommand(newConfigSchemaCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file against the schema",
		Long: `Validates the raw file before defaults are applied. Without an argument the
file named by --config, or the one discovered from the working directory, is
checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath(cmd, args)
			if err != nil {
				return err
			}
			v, err := schema.NewValidator()
			if err != nil {
				return err
			}
			if err := v.ValidateFile(path); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success(path + " is valid")
			return nil
		},
	}
}

func configFilePath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, err := config.FindConfigFile(cwd)
	if err != nil {
		return "", errors.ConfigNotFound(cwd)
	}
	return path, nil
}
