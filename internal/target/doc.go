// SPDX-License-Identifier: MPL-2.0

// Package target holds the compiled-in table of supported target triples and
// host triple detection.
package target
