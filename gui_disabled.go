//go:build !gui

package main

import (
	"context"
	"fmt"
	"os"
)

func initGUI(_ context.Context, _ *app) {
	fmt.Fprintln(os.Stderr, "transcribo: built without GUI support (rebuild with -tags gui)")
}
