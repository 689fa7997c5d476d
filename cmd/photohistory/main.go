package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/anatolykoptev/go-photohistory/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
