package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dfryer1193/inkblog/internal/cli"
)

func main() {
	if err := cli.New().Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
