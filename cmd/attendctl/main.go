package main

import (
	"context"
	"fmt"
	"os"

	"github.com/openclaw/attendance-server-go/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand(cli.DefaultBackend())
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
