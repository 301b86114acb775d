package main

import (
	"os"

	"github.com/cloudseal/secallow/cmd/secallow/command"
)

func main() {
	os.Exit(command.Execute())
}
