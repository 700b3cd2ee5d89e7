package channels

import (
	"context"

	"outreach_backend/internal/outreach/domain"
)

// SMSHandler has no transport yet; every send reports ErrChannelNotImplemented.
type SMSHandler struct{}

func (SMSHandler) Channel() domain.Channel { return domain.ChannelSMS }

func (SMSHandler) Send(context.Context, domain.PendingDelivery, domain.Lead) error {
	return domain.ErrChannelNotImplemented
}
