// Package cli builds the lazyflow command tree. Control subcommands (channel,
// touch, publish, execute, wait, cancel) forward one command to a running
// servant and mirror its stdout, stderr and exit code, so they can serve as
// the shell transport.
package cli
