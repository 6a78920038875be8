package main

import (
	"os"

	"github.com/dfe-rrdm/rrdm/app"
)

func main() {
	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}
