package main

import (
	"context"
	"os"
	"pixrelay/internal/adapters/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
