package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"weather-monitor/datasource"
	"weather-monitor/models"
)

// FirebaseStore reads the root value of a Firebase Realtime Database through
// its REST interface (GET <databaseURL>/.json)
type FirebaseStore struct {
	client *resty.Client
	auth   string
}

// NewFirebaseStore creates a store for the database at databaseURL.
// auth is a database secret or ID token and may be empty for open rules.
func NewFirebaseStore(databaseURL, auth string, timeout time.Duration, logger *slog.Logger) *FirebaseStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(databaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetLogger(datasource.NewRestyLogger(logger))

	return &FirebaseStore{client: client, auth: auth}
}

// Name returns the store name
func (s *FirebaseStore) Name() string {
	return "firebase"
}

// Latest performs a single read of the database root
func (s *FirebaseStore) Latest(ctx context.Context) (models.TelemetrySnapshot, bool, error) {
	req := s.client.R().SetContext(ctx)
	if s.auth != "" {
		req.SetQueryParam("auth", s.auth)
	}

	resp, err := req.Get("/.json")
	if err != nil {
		return models.TelemetrySnapshot{}, false, fmt.Errorf("failed to read firebase root: %w", err)
	}
	if resp.IsError() {
		return models.TelemetrySnapshot{}, false, fmt.Errorf("firebase error (status %d): %s", resp.StatusCode(), resp.String())
	}

	return models.DecodeSnapshot(resp.Body())
}

var _ Store = (*FirebaseStore)(nil)
