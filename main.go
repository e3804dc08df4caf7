// Package main is the entry point for the mutflow CLI.
package main

import "mutflow.dev/pkg/mutflow/cmd"

func main() {
	cmd.Execute()
}
