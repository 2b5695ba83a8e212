package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/pkgview/cli"
	"github.com/grovetools/pkgview/pkg/profiling"
	"github.com/grovetools/pkgview/version"
)

// NewRootCmd assembles the pkgview command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("pkgview", "Browse, search and manage packages across a solution")
	cli.SetVersionTemplate(root, version.GetInfo())
	profiling.NewCobraProfiler().AddFlags(root)

	root.AddCommand(
		NewBrowseCmd(),
		NewSearchCmd(),
		NewInstallCmd(),
		NewUninstallCmd(),
		NewUpdateCmd(),
		NewConfigCmd(),
		cli.NewVersionCommand("pkgview"),
	)
	return root
}
