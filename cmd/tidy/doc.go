// Package main hosts the tidy CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon: triggering runs, streaming run logs, managing
// disks and keyword categories, and configuration scaffolding. It centralizes
// configuration resolution and daemon address discovery so subcommands can
// focus on output formatting.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
