package main

import (
	"os"

	"github.com/prograin/agent-backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
