// Package progress reports byte-count progress for long-running transfers
// on an interactive terminal.
package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Reporter periodically prints the transferred byte count. Feed it by
// wrapping the transfer in an io.TeeReader over its Writer method.
type Reporter struct {
	count atomic.Uint64
	total atomic.Uint64

	mu     sync.Mutex
	status string
}

func (r *Reporter) SetStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *Reporter) SetTotal(total uint64) {
	r.total.Store(total)
}

// Write counts the bytes flowing through; it never fails.
func (r *Reporter) Write(p []byte) (int, error) {
	r.count.Add(uint64(len(p)))
	return len(p), nil
}

// Transferred returns the byte count so far.
func (r *Reporter) Transferred() uint64 {
	return r.count.Load()
}

// Report prints progress once a second until ctx is cancelled.
func (r *Reporter) Report(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			status := r.status
			r.mu.Unlock()
			count := r.count.Load()
			if total := r.total.Load(); total > 0 {
				fmt.Printf("\r[%s] %s / %s (%.0f%%)",
					status, Bytes(count), Bytes(total),
					100*float64(count)/float64(total))
			} else {
				fmt.Printf("\r[%s] %s", status, Bytes(count))
			}
		}
	}
}

// Bytes formats a byte count for humans.
func Bytes(n uint64) string {
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1024*1024*1024))
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KiB", float64(n)/1024)
	}
	return fmt.Sprintf("%d B", n)
}
