// SPDX-License-Identifier: MPL-2.0

// Package config loads crossrun configuration using Viper with TOML as the
// file format.
//
// Configuration comes from three layers, lowest precedence first: the
// [workspace.metadata.cross] and [package.metadata.cross] tables of
// Cargo.toml, the project's Cross.toml (or the file named by CROSS_CONFIG),
// and CROSS_* environment variables. Both file sources are validated against
// an embedded CUE schema (config_schema.cue) before merging. Unknown keys are
// reported as warnings.
package config
