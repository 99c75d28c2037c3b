package main

import "github.com/scryhq/ingestor/internal/cli"

func main() {
	cli.Execute()
}
