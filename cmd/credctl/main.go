package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/credengine/internal/credctl"
)

func main() {
	if err := credctl.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
