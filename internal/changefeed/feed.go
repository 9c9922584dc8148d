// Package changefeed carries "table X changed" notifications from the store to
// live queries, either inside one process or across processes via Redis.
package changefeed

import "context"

// Change names the tables touched by one committed write.
type Change struct {
	Tables []string `json:"tables"`
	Origin string   `json:"origin,omitempty"`
}

type Feed interface {
	Publish(ctx context.Context, c Change) error
	Listen(fn func(Change)) (cancel func())
	Close() error
}

// Local delivers changes to listeners in the same process.
type Local struct {
	hub Hub[Change]
}

func NewLocal() *Local {
	return &Local{}
}

var _ Feed = (*Local)(nil)

func (l *Local) Publish(_ context.Context, c Change) error {
	l.hub.Emit(c)
	return nil
}

func (l *Local) Listen(fn func(Change)) func() {
	return l.hub.Listen(fn)
}

func (l *Local) Close() error {
	return nil
}
