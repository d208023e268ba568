package main

import (
	"os"

	"github.com/IT-Nick/gatekeeper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
