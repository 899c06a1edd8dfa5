// Command ethrun is a thin CLI over the engine shell in core: it loads a
// genesis allocation and an ordered list of block specifications from a
// JSON scenario file, builds and inserts each block in turn, and prints a
// per-block summary.
//
// Usage:
//
//	ethrun run --scenario scenario.json
//	ethrun genesis --scenario scenario.json
package main

import (
	"fmt"
	"os"

	ethlog "github.com/ethereum/go-ethereum/log"
)

var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	ethlog.SetDefault(ethlog.NewLogger(ethlog.NewTerminalHandlerWithLevel(os.Stderr, ethlog.LevelInfo, true)))

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
