// Package ui holds the terminal output of the CLI: colored status lines, the
// per-device progress reporter and optional desktop notifications.
package ui
