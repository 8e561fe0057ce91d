package main

import (
	"os"

	"github.com/skaisay/capycode-frontend-sub002/cmd/capyctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
