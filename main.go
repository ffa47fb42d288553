package main

import (
	"os"

	"github.com/kgrid/gridopf/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
