package main

import (
	"os"

	"govdoc-scraper/cli"
)

func main() {
	os.Exit(cli.Execute())
}
