package main

import (
	"os"

	"github.com/moldlang/mold/cli"
)

func main() {
	os.Exit(cli.Execute())
}
