// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/layerpath/internal/issue"
	"github.com/invowk/layerpath/internal/packages"
)

// packageOutput is the --json form of a package.
type packageOutput struct {
	Handle      string   `json:"handle"`
	Name        string   `json:"name,omitempty"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	Core        bool     `json:"core"`
	Dir         string   `json:"dir"`
	Overrides   []string `json:"overrides,omitempty"`
}

func newPackagesCommand(app *App, state *cliState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "packages",
		Short: "List core and user packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.session(app)
			if err != nil {
				return err
			}

			if asJSON {
				out := make([]packageOutput, 0, len(s.packages.Packages))
				for _, pkg := range s.packages.Packages {
					out = append(out, toPackageOutput(pkg))
				}
				return writeJSON(app.stdout, out)
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render("Packages"))
			fmt.Fprintln(app.stdout)
			if len(s.packages.Packages) == 0 {
				fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none installed)"))
				return nil
			}
			for _, pkg := range s.packages.Packages {
				renderPackageLine(app.stdout, pkg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the packages as JSON")
	cmd.AddCommand(newPackagesShowCommand(app, state))
	return cmd
}

func newPackagesShowCommand(app *App, state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <handle>",
		Short: "Show a package's manifest and declared overrides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.session(app)
			if err != nil {
				return err
			}

			pkg, ok := packages.Find(s.packages.Packages, args[0])
			if !ok {
				return issue.NewErrorContext().
					WithOperation("find package").
					WithResource(args[0]).
					WithSuggestions(
						"run 'layerpath packages' to list installed packages",
						fmt.Sprintf("check that %s or %s contains a %q directory", s.layout.CorePackagesDir, s.layout.PackagesDir, args[0]),
					).
					WithIssue(issue.PackageNotFoundId).
					Wrap(errors.New("no such package")).
					BuildError()
			}

			renderPackage(app.stdout, pkg)
			return nil
		},
	}
}

func toPackageOutput(pkg *packages.Package) packageOutput {
	return packageOutput{
		Handle:      pkg.Handle,
		Name:        pkg.Name,
		Version:     pkg.Version,
		Description: pkg.Description,
		Core:        pkg.Core,
		Dir:         pkg.Dir,
		Overrides:   pkg.Overrides,
	}
}

func packageKind(pkg *packages.Package) string {
	if pkg.Core {
		return "core"
	}
	return "user"
}

// renderPackageLine writes a one-line package summary.
func renderPackageLine(w io.Writer, pkg *packages.Package) {
	line := fmt.Sprintf("  %s %s", KeyStyle.Render(pkg.Handle), SubtitleStyle.Render("("+packageKind(pkg)+")"))
	if pkg.Version != "" {
		line += " " + ValueStyle.Render(pkg.Version)
	}
	if pkg.Name != "" && pkg.Name != pkg.Handle {
		line += " " + VerboseStyle.Render(pkg.Name)
	}
	if n := len(pkg.Overrides); n > 0 {
		line += " " + VerboseStyle.Render(fmt.Sprintf("[%d override(s)]", n))
	}
	fmt.Fprintln(w, line)
}

// renderPackage writes the full manifest view of a package.
func renderPackage(w io.Writer, pkg *packages.Package) {
	fmt.Fprintln(w, TitleStyle.Render(pkg.DisplayName()))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("handle:"), pkg.Handle)
	fmt.Fprintf(w, "%s   %s\n", KeyStyle.Render("kind:"), packageKind(pkg))
	fmt.Fprintf(w, "%s    %s\n", KeyStyle.Render("dir:"), pkg.Dir)
	if pkg.Version != "" {
		fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("version:"), pkg.Version)
	}
	if pkg.Description != "" {
		fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("description:"), strings.TrimSpace(pkg.Description))
	}
	fmt.Fprintf(w, "%s\n", KeyStyle.Render("overrides:"))
	if len(pkg.Overrides) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none)"))
	}
	for _, segment := range pkg.Overrides {
		fmt.Fprintf(w, "  - %s\n", segment)
	}
}
