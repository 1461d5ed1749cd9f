package main

import (
	"os"

	"cobolscan/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
