package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mearth/photosync/internal/tracectx"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := zerolog.New(&buf)
	handler := Logger(baseLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("ok")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "\"message\":\"ok\"") {
		t.Fatalf("log message not written: %s", buf.String())
	}
}

func TestLoggerCarriesCorrelationIDs(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := zerolog.New(&buf)
	handler := RequestID(Logger(baseLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("ok")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(tracectx.HeaderRequestID, "4bf92f3577b34da6a3ce929d0e0e4736")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, field := range []string{
		"\"trace_id\":\"4bf92f3577b34da6a3ce929d0e0e4736\"",
		"\"request_id\":\"4bf92f3577b34da6a3ce929d0e0e4736\"",
		"\"span_id\":",
	} {
		if !strings.Contains(out, field) {
			t.Errorf("log line missing %s: %s", field, out)
		}
	}
}
