// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/layerpath/config.cue (or the XDG equivalent on
// Linux, ~/Library/Application Support/layerpath/config.cue on macOS,
// %APPDATA%\layerpath\config.cue on Windows), then ./config.cue. Every key can be
// overridden with a LAYERPATH_ environment variable.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
