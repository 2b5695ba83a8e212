package cmd

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/grovetools/pkgview/internal/fanin"
	"github.com/grovetools/pkgview/logging"
	"github.com/grovetools/pkgview/tui"
	"github.com/grovetools/pkgview/tui/browse"
	"github.com/grovetools/pkgview/tui/keymap"
)

// NewBrowseCmd opens the interactive package browser.
func NewBrowseCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse packages interactively",
		Long: `Opens the package browser for the solution, or for one project with
--project. Edits to the configuration file and to project manifests
refresh the view while it is open.

Examples:
  pkgview browse
  pkgview browse --project proj-7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, project)
			if err != nil {
				return err
			}
			defer s.Close()

			tui.InitializeTUI()
			// Log lines would tear the alternate screen.
			restore := logging.SetGlobalOutput(io.Discard)
			defer restore()

			if s.cfg.Watch.IsEnabled() && s.cfg.Path() != "" {
				sub := s.adapter.Attach(s.ctx, fanin.NewWatchSource(s.cfg))
				defer func() {
					if err := sub.Close(); err != nil {
						s.logger.WithError(err).Warn("File watching stopped with errors")
					}
				}()
			}

			model := browse.New(s.ctx, s.store, s.adapter)
			defer model.Close()
			var tuiCfg struct {
				Keys keymap.Overrides `yaml:"keys"`
			}
			if err := s.cfg.UnmarshalExtension("tui", &tuiCfg); err != nil {
				s.logger.WithError(err).Warn("Ignoring tui key overrides")
			} else if unknown := model.ApplyKeyOverrides(tuiCfg.Keys); len(unknown) > 0 {
				s.logger.WithField("keys", unknown).Warn("Unknown key bindings in tui.keys")
			}
			if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(s.ctx)).Run(); err != nil {
				return fmt.Errorf("run browser: %w", err)
			}

			if model.Selected != nil {
				logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Package(*model.Selected)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Show a single project instead of the solution")
	return cmd
}
