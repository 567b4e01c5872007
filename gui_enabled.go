//go:build gui

package main

import (
	"context"

	"transcribo/gui"
	"transcribo/live"
	"transcribo/waveform"
)

// initGUI runs the desktop window on the calling (main) thread until it is
// closed or ctx is cancelled.
func initGUI(ctx context.Context, a *app) {
	raster := waveform.NewRaster(a.cfg.Waveform.Width, a.cfg.Waveform.Height)
	window := gui.NewApp(raster)
	a.ctrl = live.New(ctx, a.loop, a.deps(raster, window))
	window.Bind(a.ctrl)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.loop.Run(loopCtx)

	go func() {
		<-ctx.Done()
		window.Quit()
	}()
	gui.Run(window, func() { a.start(loopCtx) })
	a.ctrl.Shutdown()
}
