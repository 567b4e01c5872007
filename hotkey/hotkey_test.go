package hotkey

import (
	"context"
	"testing"
	"time"
)

func expect(t *testing.T, ch <-chan Action, want Action) {
	t.Helper()
	select {
	case got, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed, want %v", want)
		}
		if got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %v", want)
	}
}

func expectNone(t *testing.T, ch <-chan Action) {
	t.Helper()
	select {
	case a := <-ch:
		t.Fatalf("unexpected %v", a)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchHold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := NewFake()
	hold := 50 * time.Millisecond
	actions := Watch(ctx, fk, hold)

	fk.SimKeydown()
	expect(t, actions, Start)
	time.Sleep(hold + 20*time.Millisecond)
	fk.SimKeyup()
	expect(t, actions, Stop)
}

func TestWatchTap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := NewFake()
	actions := Watch(ctx, fk, 200*time.Millisecond)

	fk.SimKeydown()
	expect(t, actions, Start)
	fk.SimKeyup()
	expectNone(t, actions)

	fk.SimKeydown()
	fk.SimKeyup()
	expect(t, actions, Stop)
}

func TestWatchCycles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := NewFake()
	hold := 50 * time.Millisecond
	actions := Watch(ctx, fk, hold)

	for range 2 {
		fk.SimKeydown()
		expect(t, actions, Start)
		time.Sleep(hold + 20*time.Millisecond)
		fk.SimKeyup()
		expect(t, actions, Stop)

		fk.SimKeydown()
		expect(t, actions, Start)
		fk.SimKeyup()
		time.Sleep(10 * time.Millisecond)
		fk.SimKeydown()
		fk.SimKeyup()
		expect(t, actions, Stop)
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	actions := Watch(ctx, NewFake(), time.Second)
	cancel()
	select {
	case _, ok := <-actions:
		if ok {
			t.Fatal("unexpected action")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
