// Command vaserver runs the auralization core as a standalone process:
// it loads config, assembles the core facade, starts the audio driver,
// and serves /healthz and /metrics until interrupted.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
