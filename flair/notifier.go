package flair

import (
	"context"
)

// Interface for a type that can handle sending notifications to moderators out-of-band.
type Notifier interface {
	SendReport(ctx context.Context, itemID, permalink, reason string) error
	SendCreditAlert(ctx context.Context, user string, count int) error
}
