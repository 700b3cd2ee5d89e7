// Package channels delivers a single pending delivery over its transport.
package channels

import (
	"context"
	"fmt"

	"outreach_backend/internal/outreach/domain"
)

// Handler sends one delivery. Errors are classified with the domain sentinels.
type Handler interface {
	Channel() domain.Channel
	Send(ctx context.Context, delivery domain.PendingDelivery, lead domain.Lead) error
}

// Registry maps each channel to its handler.
type Registry struct {
	handlers map[domain.Channel]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[domain.Channel]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Channel()] = h
	}
	return r
}

// Send routes delivery to its channel handler, honouring the run's toggles.
func (r *Registry) Send(ctx context.Context, toggles domain.ChannelToggles, delivery domain.PendingDelivery, lead domain.Lead) error {
	if !toggles.Enabled(delivery.Channel) {
		return fmt.Errorf("%s: %w", delivery.Channel, domain.ErrChannelDisabled)
	}
	h, ok := r.handlers[delivery.Channel]
	if !ok {
		return fmt.Errorf("%s: %w", delivery.Channel, domain.ErrNoHandler)
	}
	return h.Send(ctx, delivery, lead)
}
