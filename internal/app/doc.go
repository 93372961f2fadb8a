// Package app wires configuration, logging, the function registry and the
// servant runtime into a runnable application.
package app
