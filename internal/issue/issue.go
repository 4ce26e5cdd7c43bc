// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	BaseDirNotFoundId
	SnapshotUnavailableId
	SnapshotCorruptId
	SegmentNotFoundId
	PackageNotFoundId
	PackageManifestInvalidId
	WatchFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // project documentation about the issue
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also:\n")
		links := append(slices.Clone(i.docLinks), i.extLinks...)
		for _, link := range links {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your layerpath configuration file could not be read or does not match the schema.

## Things you can try:
- Check the reported line and column for CUE syntax errors
- Print the configuration layerpath actually uses:
~~~
$ layerpath config show
~~~

- Start over from a default configuration:
~~~
$ layerpath config init --force
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	baseDirNotFoundIssue = &Issue{
		id: BaseDirNotFoundId,
		mdMsg: `
# Installation root not found!

The base directory does not exist or is not a directory.

## Things you can try:
- Pass the installation root explicitly:
~~~
$ layerpath --base-dir /var/www/site resolve blocks/autonav/view.php
~~~

- Or set it in your configuration:
~~~cue
layout: base_dir: "/var/www/site"
~~~`,
	}

	snapshotUnavailableIssue = &Issue{
		id: SnapshotUnavailableId,
		mdMsg: `
# Environment snapshot unavailable!

layerpath could not persist the environment snapshot, so every run rescans
the application override directories.

## Things you can try:
- Make sure the cache directory is writable
- Configure a cache directory explicitly:
~~~cue
cache: directory: "/var/cache/layerpath"
~~~

- Show where layerpath writes the snapshot:
~~~
$ layerpath snapshot path
~~~`,
	}

	snapshotCorruptIssue = &Issue{
		id: SnapshotCorruptId,
		mdMsg: `
# Environment snapshot is unusable!

The snapshot file exists but could not be decoded, or it was written by a
different version of layerpath. It is ignored and a fresh scan is used.

## Things you can try:
- Remove it and write a new one:
~~~
$ layerpath snapshot clear
$ layerpath snapshot save
~~~`,
	}

	segmentNotFoundIssue = &Issue{
		id: SegmentNotFoundId,
		mdMsg: `
# Resolved file does not exist!

The segment resolved to a location that is not present on disk. Resolution
never fails, so missing segments fall back to the core default location.

## Things you can try:
- Check the segment for typos (segments are relative, slash-separated paths)
- If a package or override was just installed, the snapshot is stale:
~~~
$ layerpath snapshot clear
~~~

- Bypass the snapshot and cache for a single lookup:
~~~
$ layerpath resolve --direct blocks/autonav/view.php
~~~`,
	}

	packageNotFoundIssue = &Issue{
		id: PackageNotFoundId,
		mdMsg: `
# Package not found!

No package with that handle exists in the core packages directory or the
user packages directory.

## Things you can try:
- List installed packages:
~~~
$ layerpath packages
~~~

- Check that the package directory name matches its handle`,
	}

	packageManifestInvalidIssue = &Issue{
		id: PackageManifestInvalidId,
		mdMsg: `
# Invalid package manifest!

A package.toml file could not be parsed. The package is still listed using its
directory name as handle, but its declared overrides are ignored.

## Example package.toml:
~~~toml
handle = "calendar"
name = "Calendar"
version = "1.2.0"
overrides = ["blocks/calendar/view.php"]
~~~`,
		extLinks: []HttpLink{"https://toml.io/en/v1.0.0"},
	}

	watchFailedIssue = &Issue{
		id: WatchFailedId,
		mdMsg: `
# Failed to watch the installation!

layerpath could not subscribe to filesystem events.

## Things you can try:
- Raise the inotify watch limit on Linux:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~

- Narrow the scanned directories with the 'checked_dirs' setting`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Things you can try:
- Check file/directory permissions of the installation and cache directories
- Run layerpath as the user that owns the installation`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		baseDirNotFoundIssue.Id():        baseDirNotFoundIssue,
		snapshotUnavailableIssue.Id():    snapshotUnavailableIssue,
		snapshotCorruptIssue.Id():        snapshotCorruptIssue,
		segmentNotFoundIssue.Id():        segmentNotFoundIssue,
		packageNotFoundIssue.Id():        packageNotFoundIssue,
		packageManifestInvalidIssue.Id(): packageManifestInvalidIssue,
		watchFailedIssue.Id():            watchFailedIssue,
		permissionDeniedIssue.Id():       permissionDeniedIssue,
	}
)

// Values returns every known issue ordered by ID.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
