// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

type overridesOutput struct {
	Application  []string          `json:"application"`
	CorePackages []string          `json:"core_packages"`
	Declared     map[string]string `json:"declared"`
}

func newOverridesCommand(app *App, state *cliState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "List application overrides and declared package overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.session(app)
			if err != nil {
				return err
			}
			r := s.resolver()

			out := overridesOutput{
				Application:  r.Overrides(),
				CorePackages: r.CorePackages(),
				Declared:     r.ManualOverrides(),
			}
			if asJSON {
				return writeJSON(app.stdout, out)
			}

			source := "scan"
			if r.FromSnapshot() {
				source = "snapshot " + s.layout.SnapshotPath
			}
			fmt.Fprintf(app.stdout, "%s %s\n\n", TitleStyle.Render("Application overrides"), SubtitleStyle.Render("("+source+")"))
			if len(out.Application) == 0 {
				fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none)"))
			}
			for _, segment := range out.Application {
				fmt.Fprintf(app.stdout, "  %s\n", segment)
			}

			fmt.Fprintf(app.stdout, "\n%s\n\n", TitleStyle.Render("Package overrides"))
			if len(out.Declared) == 0 {
				fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none)"))
			}
			for _, segment := range slices.Sorted(maps.Keys(out.Declared)) {
				fmt.Fprintf(app.stdout, "  %s %s %s\n", segment, VerboseStyle.Render("->"), KeyStyle.Render(out.Declared[segment]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the overrides as JSON")
	return cmd
}
