package main

import (
	"os"

	"github.com/copyleftdev/scrytest/internal/cli"
)

func main() {
	os.Exit(cli.NewApp().Execute(os.Args[1:]))
}
