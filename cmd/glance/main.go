// Command glance watches directories for new files and feeds a status bar
// widget.
package main

import (
	"context"
	"fmt"
	"os"

	"glance/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "glance: %v\n", err)
		os.Exit(1)
	}
}
