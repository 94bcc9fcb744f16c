package main

import (
	"os"

	"github.com/bnema/sweetdata-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
