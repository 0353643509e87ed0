// Package secai provides the command-line interface for secai. It wires the
// investigation session, report export and remediation planning to cobra
// subcommands, resolves configuration and prints results.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/secai/secai/cmd/secai"
//	func main() { secai.Execute() }
package secai
