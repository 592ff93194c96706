package main

import (
	"os"

	"github.com/tablewise/portal/pkg/cli"
)

var version = "dev"

func main() {
	cli.Version = version

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
