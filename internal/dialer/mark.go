package dialer

import "context"

type markKey struct{}

type routingMark struct {
	value uint32
	onErr func(error)
}

// WithMark returns a context asking dialers to put mark on the outbound
// socket before it connects. onErr, if non-nil, is told when the mark
// can't be set; the dial then proceeds with default routing.
func WithMark(ctx context.Context, mark uint32, onErr func(error)) context.Context {
	return context.WithValue(ctx, markKey{}, routingMark{value: mark, onErr: onErr})
}

func markFromContext(ctx context.Context) (routingMark, bool) {
	m, ok := ctx.Value(markKey{}).(routingMark)
	return m, ok
}
