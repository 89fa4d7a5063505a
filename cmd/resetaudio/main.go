// Command resetaudio is the Reset Audio maintenance tool.
//
// Usage:
//
//	resetaudio scan ffxiv_dx11.exe
//	resetaudio validate resetaudio.yaml
//	resetaudio journal --db resetaudio.db --kind reset
//	resetaudio test internal/harness/testdata/scenarios
package main

import (
	"fmt"
	"os"

	"github.com/roach88/resetaudio/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
