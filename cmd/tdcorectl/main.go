// Command tdcorectl is a debug CLI driving the client façade directly,
// grounded on the teacher's cmd/substrate cobra CLI (same root/subcommand
// structure, adapted from a mail-client domain to this module's façade).
package main

import (
	"fmt"
	"os"

	"github.com/roasbeef/tdcore/cmd/tdcorectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
