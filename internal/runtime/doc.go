// Package runtime provides the execution context for binnacle-store commands.
//
// It carries the logger, the repository root and the backend selection from the
// root command's flags down to each subcommand.
package runtime
