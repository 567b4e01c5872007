//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// Set up crash logging early, before any CGO code runs
	initCrashLog()

	// The desktop window needs the main thread itself; everything else
	// shares it with the hotkey event loop.
	for _, arg := range os.Args[1:] {
		if arg == "-gui" || arg == "--gui" {
			run()
			return
		}
	}
	mainthread.Init(run)
}
