package runlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLogAppendAndFetch(t *testing.T) {
	l := NewLog()
	l.Append("first")
	l.Append("second")

	lines, next, closed, err := l.Fetch(context.Background(), 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(lines) != 2 || lines[0] != "first" || lines[1] != "second" {
		t.Errorf("lines = %v", lines)
	}
	if next != 2 || closed {
		t.Errorf("next = %d, closed = %v", next, closed)
	}

	// Cursor resumes where the previous fetch left off.
	l.Append("third")
	lines, next, _, err = l.Fetch(context.Background(), next, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(lines) != 1 || lines[0] != "third" || next != 3 {
		t.Errorf("lines = %v, next = %d", lines, next)
	}
}

func TestLateSubscriberReplaysHistory(t *testing.T) {
	l := NewLog()
	for i := 0; i < 5; i++ {
		l.Appendf("line %d", i)
	}
	l.Close()

	lines, _, closed, err := l.Fetch(context.Background(), 0, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(lines) != 5 {
		t.Fatalf("late subscriber saw %d lines, want 5", len(lines))
	}
	if !closed {
		t.Error("closed flag not reported")
	}
}

func TestFetchCancelWakesWaiterEveryTime(t *testing.T) {
	// Cancellation racing the entry into the wait loop must still wake
	// the subscriber; no append or close ever arrives here.
	for i := 0; i < 200; i++ {
		l := NewLog()
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			_, _, _, err := l.Fetch(ctx, 0, true)
			done <- err
		}()
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("Fetch = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Fetch did not return after cancellation")
		}
	}
}

func TestFetchBlocksUntilAppend(t *testing.T) {
	l := NewLog()

	done := make(chan []string, 1)
	go func() {
		lines, _, _, _ := l.Fetch(context.Background(), 0, true)
		done <- lines
	}()

	time.Sleep(20 * time.Millisecond)
	l.Append("woken")

	select {
	case lines := <-done:
		if len(lines) != 1 || lines[0] != "woken" {
			t.Errorf("lines = %v", lines)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on append")
	}
}

func TestFetchUnblocksOnClose(t *testing.T) {
	l := NewLog()
	l.Append("only")

	done := make(chan bool, 1)
	go func() {
		_, _, closed, _ := l.Fetch(context.Background(), 1, true)
		done <- closed
	}()

	time.Sleep(20 * time.Millisecond)
	l.Close()

	select {
	case closed := <-done:
		if !closed {
			t.Error("reader woke without closed flag")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on close")
	}
}

func TestFetchHonorsContext(t *testing.T) {
	l := NewLog()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, _, err := l.Fetch(ctx, 0, true)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on context cancel")
	}
}

func TestNoMissedLinesUnderConcurrency(t *testing.T) {
	l := NewLog()
	const total = 200

	var wg sync.WaitGroup
	wg.Add(1)
	var got []string
	go func() {
		defer wg.Done()
		since := 0
		for {
			lines, next, closed, err := l.Fetch(context.Background(), since, true)
			if err != nil {
				t.Errorf("Fetch: %v", err)
				return
			}
			got = append(got, lines...)
			since = next
			if closed && next == l.Len() && len(lines) == 0 {
				return
			}
			if closed && since >= total {
				return
			}
		}
	}()

	for i := 0; i < total; i++ {
		l.Appendf("line %d", i)
	}
	l.Close()
	wg.Wait()

	if len(got) != total {
		t.Fatalf("reader saw %d lines, want %d", len(got), total)
	}
	for i, line := range got {
		if want := fmt.Sprintf("line %d", i); line != want {
			t.Fatalf("line %d = %q, want %q", i, line, want)
		}
	}
}

func TestTextJoinsWithTrailingNewline(t *testing.T) {
	l := NewLog()
	if l.Text() != "" {
		t.Errorf("empty log text = %q", l.Text())
	}
	l.Append("a")
	l.Append("b")
	if got := l.Text(); got != "a\nb\n" {
		t.Errorf("text = %q", got)
	}
}

func TestAppendAfterCloseDropped(t *testing.T) {
	l := NewLog()
	l.Append("kept")
	l.Close()
	l.Append("dropped")
	if l.Len() != 1 {
		t.Errorf("len = %d, want 1", l.Len())
	}
}

func TestHubLifecycle(t *testing.T) {
	h := NewHub()

	l := h.Open(42)
	if h.Get(42) != l {
		t.Error("Get did not return the opened log")
	}
	if h.Get(7) != nil {
		t.Error("Get returned a log for an unknown run")
	}

	l.Append("running")
	h.Finish(42)
	if h.Get(42) != nil {
		t.Error("finished run still tracked")
	}
	if !l.Closed() {
		t.Error("Finish did not close the log")
	}
	// A reader holding the reference still drains history.
	lines, _, closed, err := l.Fetch(context.Background(), 0, true)
	if err != nil || len(lines) != 1 || !closed {
		t.Errorf("drain after finish = (%v, %v, %v)", lines, closed, err)
	}
}
