// Package cli implements pipectl, a command-line client for remote record
// collections and a server for local ones.
//
// Client commands (read, query, save, remove) drive a pipe over the rest
// transport. serve exposes local stores over HTTP with the same conventions,
// so pipectl can talk to itself.
package cli
