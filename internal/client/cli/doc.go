// Package cli provides the interactive credkeeper command-line client.
//
// It wires configuration and the gRPC client into a small REPL:
// register, login, whoami, refresh, logout and exit. Passwords are read
// from the terminal without echo and wiped after use.
package cli
