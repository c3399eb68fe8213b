package main

import (
	"os"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
