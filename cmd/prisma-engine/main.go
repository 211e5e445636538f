// Package main is the entry point for the prisma-engine CLI.
package main

import (
	"os"

	"github.com/satishbabariya/prisma-engine-go/cmd/prisma-engine/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
