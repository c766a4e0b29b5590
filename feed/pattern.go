package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/ardnew/softchar/pkg"
)

// Pattern is a synthetic interrupt source: it emits Data one byte per
// tick, cycling through it, until Limit bytes have been emitted.
type Pattern struct {
	Data     []byte
	Interval time.Duration
	Limit    int // 0 means no limit
}

// Run emits the pattern into sink until the limit is reached, ctx ends,
// or the sink's device is removed. A byte the sink rejects because it is
// full is offered again on the next tick. Run returns the number of bytes
// the sink accepted.
func (p Pattern) Run(ctx context.Context, sink Sink) (int, error) {
	if len(p.Data) == 0 || p.Interval <= 0 || p.Limit < 0 {
		return 0, fmt.Errorf("pattern %q every %v: %w", p.Data, p.Interval, pkg.ErrInvalidParameter)
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	sent := 0
	for p.Limit == 0 || sent < p.Limit {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-ticker.C:
		}

		b := p.Data[sent%len(p.Data)]
		if sink.WriteBytes([]byte{b}) == 1 {
			sent++
			continue
		}
		if removed(sink) {
			return sent, pkg.ErrDeviceGone
		}
	}
	pkg.LogDebug(pkg.ComponentFeed, "pattern complete", "bytes", sent)
	return sent, nil
}
