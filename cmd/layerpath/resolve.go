// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/layerpath/internal/environment"
	"github.com/invowk/layerpath/internal/issue"
)

type (
	// lookupFlagValues are shared by resolve, path and url.
	lookupFlagValues struct {
		pkg    string
		direct bool
		check  bool
	}

	// resolveOutput is the --json form of a resolved record.
	resolveOutput struct {
		Segment string `json:"segment"`
		environment.Record
	}
)

func (f *lookupFlagValues) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.pkg, "package", "p", "", "resolve within the named package")
	cmd.Flags().BoolVar(&f.direct, "direct", false, "check the filesystem directly instead of using the scan")
	cmd.Flags().BoolVar(&f.check, "check", false, "fail when the resolved path does not exist")
}

func newResolveCommand(app *App, state *cliState) *cobra.Command {
	var (
		flags  lookupFlagValues
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <segment>",
		Short: "Show which layer serves a segment",
		Long: `Show which layer serves a segment.

The application override directory wins, then the package given with
--package (or declared for the segment), then the core defaults.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segment, rec, err := lookup(app, state, &flags, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(app.stdout, resolveOutput{Segment: segment, Record: rec})
			}
			renderRecord(app.stdout, segment, rec)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	return cmd
}

func newPathCommand(app *App, state *cliState) *cobra.Command {
	var flags lookupFlagValues

	cmd := &cobra.Command{
		Use:   "path <segment>",
		Short: "Print the physical path serving a segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rec, err := lookup(app, state, &flags, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, rec.Path)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newURLCommand(app *App, state *cliState) *cobra.Command {
	var flags lookupFlagValues

	cmd := &cobra.Command{
		Use:   "url <segment>",
		Short: "Print the public URL serving a segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rec, err := lookup(app, state, &flags, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, rec.URL)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// lookup resolves rawSegment with the cached Resolver, or with a live
// filesystem check when --direct is set.
func lookup(app *App, state *cliState, flags *lookupFlagValues, rawSegment string) (string, environment.Record, error) {
	segment := strings.Trim(rawSegment, "/")
	if segment == "" {
		return "", environment.Record{}, fmt.Errorf("segment must not be empty")
	}

	s, err := state.session(app)
	if err != nil {
		return "", environment.Record{}, err
	}

	r := s.resolver()
	ref := s.packageRef(flags.pkg)

	var rec environment.Record
	if flags.direct {
		rec = r.Direct(segment, ref)
	} else {
		rec = r.Record(segment, ref)
	}

	if flags.check {
		if _, statErr := os.Stat(rec.Path); statErr != nil {
			return "", environment.Record{}, issue.NewErrorContext().
				WithOperation("resolve segment").
				WithResource(segment).
				WithSuggestions(
					"check the spelling of the segment",
					"run 'layerpath snapshot clear' if the file was added after the last scan",
				).
				WithIssue(issue.SegmentNotFoundId).
				Wrap(statErr).
				BuildError()
		}
	}

	return segment, rec, nil
}

// renderRecord writes a human-readable record.
func renderRecord(w io.Writer, segment string, rec environment.Record) {
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("segment:"), segment)
	fmt.Fprintf(w, "%s  %s\n", KeyStyle.Render("source:"), renderSource(rec.Source.String()))
	fmt.Fprintf(w, "%s    %s\n", KeyStyle.Render("path:"), ValueStyle.Render(rec.Path))
	fmt.Fprintf(w, "%s     %s\n", KeyStyle.Render("url:"), ValueStyle.Render(rec.URL))
	if rec.PackageHandle != "" {
		fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("package:"), ValueStyle.Render(rec.PackageHandle))
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
