package main

import (
	"os"

	"github.com/soundbridge/gigdispatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
