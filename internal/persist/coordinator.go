package persist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

// PrimaryStore is the authoritative transactional store.
type PrimaryStore interface {
	CreateThreat(ctx context.Context, rec models.ThreatRecord) (models.ThreatRecord, error)
}

// AuditStore receives best-effort mirrors of committed records.
type AuditStore interface {
	Append(ctx context.Context, entry models.AuditLogEntry) error
}

// Coordinator commits records to the primary store and mirrors them into the
// audit store. The two stores are separate failure domains: a primary failure
// aborts the operation with no side effects, an audit failure is logged and
// swallowed.
type Coordinator struct {
	primary PrimaryStore
	audit   AuditStore
	log     *slog.Logger
}

// NewCoordinator wires both stores. The audit store may be nil, in which case
// mirroring is disabled.
func NewCoordinator(primary PrimaryStore, audit AuditStore, log *slog.Logger) *Coordinator {
	return &Coordinator{primary: primary, audit: audit, log: log}
}

// Persist commits one canonical record. On success the returned record carries
// the store-assigned id and created_at. There is no deduplication: persisting
// equivalent content twice creates two records.
func (c *Coordinator) Persist(ctx context.Context, rec models.ThreatRecord) (models.ThreatRecord, error) {
	committed, err := c.primary.CreateThreat(ctx, rec)
	if err != nil {
		return models.ThreatRecord{}, fmt.Errorf("primary store: %w", err)
	}

	if c.audit != nil {
		if err := c.audit.Append(ctx, auditEntry(committed)); err != nil {
			// Audit lag or loss never affects the committed record.
			c.log.Warn("audit mirror failed",
				slog.Int64("primary_id", committed.ID),
				slog.Any("err", err),
			)
		}
	}

	return committed, nil
}

func auditEntry(rec models.ThreatRecord) models.AuditLogEntry {
	return models.AuditLogEntry{
		PrimaryID:       rec.ID,
		Title:           rec.Title,
		SourceURLs:      rec.SourceURLs,
		CreatedAt:       rec.CreatedAt.UTC().Format(time.RFC3339),
		Region:          rec.Region,
		Countries:       rec.Countries,
		Category:        rec.Category,
		Description:     rec.Description,
		PotentialImpact: rec.PotentialImpact,
		DateMentioned:   rec.DateMentioned,
	}
}
