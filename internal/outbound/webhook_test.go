package outbound

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

func TestWebhookNotifyPostsCard(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := models.ThreatRecord{
		ID:              3,
		Title:           "Canal blockage",
		Region:          "Suez Canal",
		Countries:       []string{"Egypt"},
		Category:        "Infrastructure",
		Description:     "Vessel aground blocking transit.",
		PotentialImpact: "Rerouting around the Cape",
		DateMentioned:   "Not specified",
	}

	require.NoError(t, NewWebhook(srv.URL).Notify(context.Background(), rec))

	require.Equal(t, "MessageCard", body["@type"])
	require.Equal(t, "Canal blockage", body["summary"])
	require.Contains(t, body["title"], "Canal blockage")
}

func TestWebhookNotifyRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Notify(context.Background(), models.ThreatRecord{Title: "x"})
	require.Error(t, err)
}
