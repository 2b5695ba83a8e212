package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/grovetools/pkgview/errors"
	"github.com/grovetools/pkgview/internal/fanin"
	"github.com/grovetools/pkgview/logging"
	"github.com/grovetools/pkgview/pkg/models"
	"github.com/grovetools/pkgview/state"
)

// actionFlags are shared by install, uninstall and update.
type actionFlags struct {
	projects           []string
	dependencyBehavior string
	removeDependencies bool
	force              bool
}

func (f *actionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.projects, "project", "p", nil, "Target project ids (default: every project in the solution)")
	cmd.Flags().StringVar(&f.dependencyBehavior, "dependency-behavior", "", "Dependency resolution: lowest, highest, ignore")
	cmd.Flags().BoolVar(&f.removeDependencies, "remove-dependencies", false, "Remove dependencies that are no longer used")
	cmd.Flags().BoolVar(&f.force, "force", false, "Remove even when other packages depend on it")
}

// setOptions records the flags the user passed explicitly.
func (f *actionFlags) setOptions(cmd *cobra.Command) func(*state.ActionOptions) {
	return func(o *state.ActionOptions) {
		if cmd.Flags().Changed("dependency-behavior") {
			o.DependencyBehavior = f.dependencyBehavior
		}
		if cmd.Flags().Changed("remove-dependencies") {
			o.RemoveDependencies = f.removeDependencies
		}
		if cmd.Flags().Changed("force") {
			o.ForceRemove = f.force
		}
	}
}

// targets resolves the --project ids against the solution.
func (f *actionFlags) targets(s *session) ([]models.ProjectRef, error) {
	if len(f.projects) == 0 {
		return s.cfg.Solution.Projects, nil
	}
	var out []models.ProjectRef
	for _, id := range f.projects {
		i := slices.IndexFunc(s.cfg.Solution.Projects, func(p models.ProjectRef) bool { return p.ID == id })
		if i < 0 {
			return nil, errors.ProjectNotFound(id)
		}
		out = append(out, s.cfg.Solution.Projects[i])
	}
	return out, nil
}

// runAction executes op through the engine and reports the touched projects.
func runAction(cmd *cobra.Command, flags *actionFlags, action string, op func(ctx context.Context, s *session, targets []models.ProjectRef, opts state.ActionOptions) ([]string, error)) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer s.Close()

	targets, err := flags.targets(s)
	if err != nil {
		return err
	}

	var touched []string
	err = s.engine.ExecuteAction(s.ctx, action, func(ctx context.Context, opts state.ActionOptions) error {
		var opErr error
		touched, opErr = op(ctx, s, targets, opts)
		return opErr
	}, flags.setOptions(cmd))
	if err != nil {
		return err
	}

	if len(touched) > 0 {
		s.dispatch(fanin.Event{Type: fanin.ActionsExecuted, ProjectIDs: touched})
	}
	pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
	if len(touched) == 0 {
		pretty.InfoPretty("Nothing to do")
		return nil
	}
	pretty.Success(fmt.Sprintf("%s finished for %d project(s)", action, len(touched)))
	return nil
}

// NewInstallCmd installs a package into projects.
func NewInstallCmd() *cobra.Command {
	var (
		flags   actionFlags
		version string
	)
	cmd := &cobra.Command{
		Use:   "install <package>",
		Short: "Install a package into solution projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, &flags, "install", func(ctx context.Context, s *session, targets []models.ProjectRef, _ state.ActionOptions) ([]string, error) {
				id := models.PackageIdentity{ID: args[0], Version: version}
				if id.Version == "" {
					meta, _, err := s.catalog.GetMetadata(ctx, id, s.cfg.EnabledSources(), false)
					if err != nil {
						return nil, err
					}
					id.Version = meta.LatestVersion
				}
				var touched []string
				for _, p := range targets {
					if err := s.catalog.Install(ctx, p, id); err != nil {
						return touched, err
					}
					s.logger.WithField("project", p.ID).WithField("package", id.String()).Info("Installed package")
					touched = append(touched, p.ID)
				}
				return touched, nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&version, "version", "", "Version to install (default: latest)")
	return cmd
}

// NewUninstallCmd removes a package from projects.
func NewUninstallCmd() *cobra.Command {
	var flags actionFlags
	cmd := &cobra.Command{
		Use:   "uninstall <package>",
		Short: "Remove a package from solution projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, &flags, "uninstall", func(ctx context.Context, s *session, targets []models.ProjectRef, _ state.ActionOptions) ([]string, error) {
				installed, err := s.catalog.InstalledPackages(ctx, targets)
				if err != nil {
					return nil, err
				}
				var touched []string
				for _, p := range targets {
					if !hasTopLevel(installed, p.ID, args[0]) {
						continue
					}
					if err := s.catalog.Uninstall(ctx, p, args[0]); err != nil {
						return touched, err
					}
					touched = append(touched, p.ID)
				}
				return touched, nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewUpdateCmd moves installed packages to their latest version.
func NewUpdateCmd() *cobra.Command {
	var (
		flags      actionFlags
		prerelease bool
	)
	cmd := &cobra.Command{
		Use:   "update [package]",
		Short: "Update installed packages to their latest version",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, &flags, "update", func(ctx context.Context, s *session, targets []models.ProjectRef, _ state.ActionOptions) ([]string, error) {
				installed, err := s.catalog.InstalledPackages(ctx, targets)
				if err != nil {
					return nil, err
				}
				var touched []string
				for _, pkg := range installed {
					if pkg.Transitive || (len(args) == 1 && !strings.EqualFold(pkg.Identity.ID, args[0])) {
						continue
					}
					project, ok := projectByID(targets, pkg.ProjectID)
					if !ok {
						continue
					}
					meta, _, err := s.catalog.GetMetadata(ctx, pkg.Identity, s.cfg.EnabledSources(), prerelease)
					if err != nil {
						if errors.Is(err, errors.ErrCodePackageNotFound) {
							continue
						}
						return touched, err
					}
					if !newer(meta.LatestVersion, pkg.Identity.Version) {
						continue
					}
					if err := s.catalog.Install(ctx, project, models.PackageIdentity{ID: pkg.Identity.ID, Version: meta.LatestVersion}); err != nil {
						return touched, err
					}
					if !slices.Contains(touched, project.ID) {
						touched = append(touched, project.ID)
					}
				}
				return touched, nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Allow prerelease versions")
	return cmd
}

func hasTopLevel(installed []models.InstalledPackage, projectID, packageID string) bool {
	return slices.ContainsFunc(installed, func(p models.InstalledPackage) bool {
		return p.ProjectID == projectID && !p.Transitive && strings.EqualFold(p.Identity.ID, packageID)
	})
}

// newer reports whether latest is a higher version than installed.
func newer(latest, installed string) bool {
	l, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	i, err := semver.NewVersion(installed)
	if err != nil {
		return true
	}
	return l.GreaterThan(i)
}

// projectByID finds the target project an installed package belongs to.
func projectByID(targets []models.ProjectRef, id string) (models.ProjectRef, bool) {
	i := slices.IndexFunc(targets, func(p models.ProjectRef) bool { return p.ID == id })
	if i < 0 {
		return models.ProjectRef{}, false
	}
	return targets[i], true
}
