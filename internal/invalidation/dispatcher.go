package invalidation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBuffer  = 64
	publishTimeout = 5 * time.Second
)

// Dispatcher fans signals out to publishers on a background goroutine.
// Invalidate never blocks: when the buffer is full the signal is dropped and logged.
type Dispatcher struct {
	publishers []Publisher
	logger     *zap.Logger
	queue      chan Signal
	now        func() time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher starts a dispatcher. buffer <= 0 selects a default size.
func NewDispatcher(logger *zap.Logger, buffer int, publishers ...Publisher) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	d := &Dispatcher{
		publishers: publishers,
		logger:     logger,
		queue:      make(chan Signal, buffer),
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

// Invalidate queues path for every publisher.
func (d *Dispatcher) Invalidate(path string) {
	sig := Signal{Path: path, At: d.now().UTC()}
	defer func() {
		// Sending after Close panics; treat it as a drop.
		if recover() != nil {
			d.logger.Warn("invalidation dropped after close", zap.String("path", path))
		}
	}()
	select {
	case d.queue <- sig:
	default:
		d.logger.Warn("invalidation queue full, dropping signal", zap.String("path", path))
	}
}

// Close stops accepting signals and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for sig := range d.queue {
		for _, p := range d.publishers {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := p.Publish(ctx, sig); err != nil {
				d.logger.Error("failed to publish invalidation",
					zap.String("path", sig.Path),
					zap.Error(err),
				)
			}
			cancel()
		}
		d.logger.Debug("invalidation dispatched", zap.String("path", sig.Path))
	}
}
