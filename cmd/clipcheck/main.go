package main

import (
	"os"

	"github.com/clipcheck/clipcheck/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
