package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/pkgview/cli"
	"github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/internal/engine"
	"github.com/grovetools/pkgview/internal/fanin"
	"github.com/grovetools/pkgview/logging"
	"github.com/grovetools/pkgview/pkg/models"
	"github.com/grovetools/pkgview/pkg/profiling"
)

type searchResult struct {
	Title  string                     `json:"title"`
	Filter models.ItemFilter          `json:"filter"`
	Items  []models.PackageSearchItem `json:"items"`
	Counts models.Counts              `json:"counts"`
}

// NewSearchCmd runs one load headlessly and prints the result.
func NewSearchCmd() *cobra.Command {
	var (
		filter     string
		source     string
		project    string
		prerelease bool
	)

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search packages and print the visible list",
		Long: `Runs the same load the browser would show and prints it, followed by
the derived counters.

Examples:
  pkgview search json
  pkgview search --filter updates --project proj-7
  pkgview search --json --prerelease http`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemFilter, err := models.ParseFilter(filter)
			if err != nil {
				return errors.New(errors.ErrCodeInvalidInput, err.Error())
			}

			s, err := openSession(cmd, project)
			if err != nil {
				return err
			}
			defer s.Close()

			events := []fanin.Event{{Type: fanin.VisibilityChanged, Visible: true}}
			if cmd.Flags().Changed("prerelease") {
				events = append(events, fanin.Event{Type: fanin.PrereleaseToggled, IncludePrerelease: prerelease})
			}
			if source != "" {
				events = append(events, fanin.Event{Type: fanin.SourceSelected, Source: source})
			}
			if cmd.Flags().Changed("filter") {
				events = append(events, fanin.Event{Type: fanin.FilterChanged, Filter: itemFilter})
			}
			if len(args) == 1 {
				events = append(events, fanin.Event{Type: fanin.SearchRequested, SearchText: strings.TrimSpace(args[0])})
			}
			timer := profiling.Start("load")
			for _, ev := range events {
				o := s.dispatch(ev)
				s.logger.WithField("event", ev.String()).WithField("outcome", o).Debug("Event handled")
				if o == engine.NotApplicable {
					return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("%s does not apply to this surface", ev.Type))
				}
			}
			timer.Stop()

			timer = profiling.Start("refresh counts")
			if err := s.engine.RefreshCounts(s.ctx); err != nil && !errors.IsCancellation(err) {
				s.logger.WithError(err).Warn("Counters could not be refreshed")
			}
			timer.Stop()

			st := s.store.Get()
			if st.Error != "" {
				return errors.New(errors.ErrCodeBackendUnavailable, st.Error)
			}

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(searchResult{
					Title:  st.Title,
					Filter: st.Filter,
					Items:  st.Items,
					Counts: st.Counts,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.InfoPretty(st.Title)
			pretty.Field("Filter", st.Filter)
			if st.SearchText != "" {
				pretty.Field("Search", st.SearchText)
			}
			pretty.Divider()
			if len(st.Items) == 0 {
				pretty.InfoPretty("No packages found")
			}
			for _, item := range st.Items {
				pretty.Package(item)
			}
			pretty.Divider()
			pretty.Counts(st.Counts)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Item filter: all, installed, updates, consolidate")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Package source to search")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Show a single project instead of the solution")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prerelease versions")
	return cmd
}
