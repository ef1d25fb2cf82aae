package main

import (
	"os"

	"spotrisk/cmd/spotrisk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
