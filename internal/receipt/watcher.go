package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchInbox scans the inbox whenever a receipt image is created or written
// there. Bursts of events within debounce are coalesced into one scan.
// It blocks until ctx is cancelled.
func WatchInbox(ctx context.Context, dir string, debounce time.Duration, runner ScanRunner) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	slog.Info("Watching inbox", "dir", dir, "debounce", debounce)

	// one pending trigger is enough, the scan picks up everything
	trigger := make(chan struct{}, 1)
	fire := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !IsReceiptImage(ev.Name) {
				continue
			}
			slog.Debug("Inbox changed", "file", ev.Name, "op", ev.Op.String())
			if debounce <= 0 {
				fire()
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, fire)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Inbox watcher error", "error", err)

		case <-trigger:
			runner.Scan()
		}
	}
}
