package main

import (
	"os"

	"github.com/watchdesk-systems/watchdesk/cmd/watchdesk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
