// Command clauselens is the entry point for the ClauseLens document QA
// service. It provides a Cobra CLI with an HTTP server (`serve`), a direct
// indexing command (`ingest`), and operator utilities.
package main

import (
	"fmt"
	"os"

	"github.com/clauselens/clauselens-go/cmd/clauselens/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
