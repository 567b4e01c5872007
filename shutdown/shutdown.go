// Package shutdown ties process termination signals to a context.
package shutdown

import (
	"context"
	"os"
	"os/signal"
)

// Context is cancelled on the first termination signal. A second signal
// falls back to the default handler once stop has been called.
func Context(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

func Notify(ch chan<- os.Signal) {
	signal.Notify(ch, signals...)
}
