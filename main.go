package main

import (
	"os"

	"github.com/newhook/cilog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
