package payments

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher polls the store at a fixed interval until the watched
// reference is credited or the caller stops it. It only reads status;
// crediting stays with the verification engine.
type Watcher struct {
	verified chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// WatchPayment starts a background status poll for the reference. The
// Verified channel closes once a credit is observed; Stop tears the
// watcher down when the wait is no longer relevant.
func (s *Service) WatchPayment(ctx context.Context, reference string) *Watcher {
	interval := s.cfg.WatchInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}

	w := &Watcher{
		verified: make(chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				verified, err := s.CheckStatus(ctx, reference)
				if err != nil {
					zap.L().Warn("Status check failed",
						zap.String("reference", reference), zap.Error(err))
					continue
				}
				if verified {
					close(w.verified)
					return
				}
			}
		}
	}()

	return w
}

// Verified closes when the watched payment has been credited.
func (w *Watcher) Verified() <-chan struct{} {
	return w.verified
}

// Stop halts polling. Safe to call more than once; returns after the
// polling goroutine has exited.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
