package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/recstream/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "recs: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
