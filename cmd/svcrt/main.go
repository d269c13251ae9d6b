// Command svcrt drives the query-side service runtime against a sandbox
// host: conformance scenarios, persisted runs and ABI descriptor checks.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/svcrt/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
