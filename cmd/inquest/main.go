package main

import (
	"github.com/inquest-labs/inquest/cmd/inquest/commands"
)

func main() {
	commands.HandleError(commands.Execute(), "inquest")
}
