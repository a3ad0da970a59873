package main

import (
	"context"
	"os"

	"github.com/relaylabs/agentloop/internal/cli"
)

func main() {
	cli.Run(context.Background(), os.Args[1:])
}
