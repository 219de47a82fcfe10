package memory

import (
	"context"
	"sync"

	"github.com/artpar/maxrange/domain/ranges"
	"github.com/artpar/maxrange/ports"
)

// Publisher records published reports.
type Publisher struct {
	mu      sync.Mutex
	reports []ranges.Report
	err     error
	closed  bool
}

// NewPublisher creates a recording publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish records the report.
func (p *Publisher) Publish(ctx context.Context, report ranges.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reports = append(p.reports, report)
	return nil
}

// Close marks the publisher closed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Fail makes every subsequent Publish return err.
func (p *Publisher) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Reports returns the published reports.
func (p *Publisher) Reports() []ranges.Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ranges.Report(nil), p.reports...)
}

// Closed reports whether Close was called.
func (p *Publisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

var _ ports.RangePublisher = (*Publisher)(nil)
