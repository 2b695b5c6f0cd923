// Package outbound delivers committed threat records to external sinks.
// Delivery is fire-and-forget: a failed notification is logged by the caller
// and never affects the record or the run that produced it.
package outbound

import (
	"context"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

// Notifier pushes one committed record to an external sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, rec models.ThreatRecord) error
}
