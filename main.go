// Package main is the entry point for the qtsync CLI.
package main

import "qtsync.dev/pkg/qtsync/cmd"

func main() {
	cmd.Execute()
}
