package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

type stubPrimary struct {
	created []models.ThreatRecord
	err     error
	nextID  int64
}

func (s *stubPrimary) CreateThreat(_ context.Context, rec models.ThreatRecord) (models.ThreatRecord, error) {
	if s.err != nil {
		return models.ThreatRecord{}, s.err
	}
	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	s.created = append(s.created, rec)
	return rec, nil
}

type stubAudit struct {
	entries []models.AuditLogEntry
	err     error
}

func (s *stubAudit) Append(_ context.Context, entry models.AuditLogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPersistCommitsAndMirrors(t *testing.T) {
	primary := &stubPrimary{}
	audit := &stubAudit{}
	c := NewCoordinator(primary, audit, discard())

	rec, err := c.Persist(context.Background(), models.ThreatRecord{
		Title:      "Port strike",
		Region:     "Baltic Sea",
		SourceURLs: []string{"http://a"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.ID)
	require.False(t, rec.CreatedAt.IsZero())

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	require.Equal(t, rec.ID, entry.PrimaryID)
	require.Equal(t, "Port strike", entry.Title)
	require.Equal(t, rec.CreatedAt.UTC().Format(time.RFC3339), entry.CreatedAt)
}

func TestPersistPrimaryFailureHasNoSideEffects(t *testing.T) {
	primary := &stubPrimary{err: errors.New("connection refused")}
	audit := &stubAudit{}
	c := NewCoordinator(primary, audit, discard())

	_, err := c.Persist(context.Background(), models.ThreatRecord{Title: "x"})
	require.Error(t, err)
	require.Empty(t, audit.entries)
}

func TestPersistAuditFailureStillSucceeds(t *testing.T) {
	primary := &stubPrimary{}
	audit := &stubAudit{err: errors.New("index unavailable")}
	c := NewCoordinator(primary, audit, discard())

	rec, err := c.Persist(context.Background(), models.ThreatRecord{Title: "x"})
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.ID)
	require.Len(t, primary.created, 1)
}

func TestPersistWithoutAuditStore(t *testing.T) {
	primary := &stubPrimary{}
	c := NewCoordinator(primary, nil, discard())

	_, err := c.Persist(context.Background(), models.ThreatRecord{Title: "x"})
	require.NoError(t, err)
}
