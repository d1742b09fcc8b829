package datasource

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRestyLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewRestyLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Errorf("boom %d\n", 1)
	l.Warnf("careful %s", "now")
	l.Debugf("detail")

	out := buf.String()
	for _, want := range []string{
		`level=ERROR msg="boom 1" component=resty`,
		`level=WARN msg="careful now" component=resty`,
		`level=DEBUG msg=detail component=resty`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestProviderRetryWarningsGoToLogger(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack failed: %v", err)
			return
		}
		conn.Close()
	}))
	defer ts.Close()

	var buf bytes.Buffer
	p := NewWeatherAPIProvider("key",
		WithBaseURL(ts.URL),
		WithRetryWait(time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)

	if _, err := p.FetchForecast(context.Background(), "Islamabad", 3); err == nil {
		t.Fatal("expected an error when every attempt is dropped")
	}

	out := buf.String()
	if !strings.Contains(out, "component=resty") || !strings.Contains(out, "Attempt 1") {
		t.Errorf("retry warning not routed through slog:\n%s", out)
	}
}
