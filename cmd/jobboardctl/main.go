package main

import (
	"fmt"
	"os"

	"github.com/jobboard/backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.NewApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
