package main

import (
	"os"

	"github.com/wolfman30/agenda-dashboard/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
