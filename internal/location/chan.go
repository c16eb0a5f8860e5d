package location

import (
	"context"
	"sync"

	"github.com/geomemo/geomemo/pkg/core"
)

// ChanSource adapts a caller-owned channel. The stream ends when the channel
// is closed. If Denied is set, Subscribe fails with it instead.
type ChanSource struct {
	C      <-chan core.Position
	Denied error
}

// Subscribe forwards filtered positions from C.
func (s *ChanSource) Subscribe(ctx context.Context, opts Options) (Subscription, error) {
	if s.Denied != nil {
		return nil, s.Denied
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &chanSubscription{
		positions: make(chan core.Position),
		cancel:    cancel,
	}
	go sub.run(ctx, s.C, &filter{opts: opts})
	return sub, nil
}

type chanSubscription struct {
	positions chan core.Position
	cancel    context.CancelFunc
	once      sync.Once
}

func (s *chanSubscription) run(ctx context.Context, in <-chan core.Position, f *filter) {
	defer close(s.positions)
	for {
		select {
		case <-ctx.Done():
			return
		case pos, ok := <-in:
			if !ok {
				return
			}
			if !f.accept(pos) {
				continue
			}
			select {
			case s.positions <- pos:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *chanSubscription) Positions() <-chan core.Position {
	return s.positions
}

func (s *chanSubscription) Err() error {
	return nil
}

func (s *chanSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
