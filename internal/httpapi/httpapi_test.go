package httpapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"ballpark/internal/etl"
	"ballpark/internal/httpapi"
	"ballpark/internal/retry"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		noData    bool
		permanent bool
		ok        bool
	}{
		{name: "ok", status: 200, body: `{"a":1}`, ok: true},
		{name: "not found", status: 404, noData: true},
		{name: "empty body", status: 200, body: "", noData: true},
		{name: "server error", status: 503},
		{name: "rate limited", status: 429},
		{name: "request timeout", status: 408},
		{name: "bad request", status: 400, permanent: true},
		{name: "forbidden", status: 403, permanent: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := httpapi.New(httpapi.Options{BaseURL: srv.URL})
			err := httpapi.Classify(client.R().SetContext(context.Background()).Get("/x"))
			switch {
			case tc.ok:
				require.NoError(t, err)
			case tc.noData:
				require.ErrorIs(t, err, etl.ErrNoData)
			case tc.permanent:
				require.True(t, retry.IsPermanent(err))
			default:
				require.Error(t, err)
				require.False(t, retry.IsPermanent(err))
				require.False(t, errors.Is(err, etl.ErrNoData))
			}
		})
	}
}

func TestClassify_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := httpapi.New(httpapi.Options{BaseURL: url})
	err := httpapi.Classify(client.R().Get("/x"))
	require.Error(t, err)
	require.False(t, retry.IsPermanent(err))
}

func TestDecodeObject(t *testing.T) {
	m, err := httpapi.DecodeObject([]byte(`{"gamePk": 1}`))
	require.NoError(t, err)
	require.Equal(t, float64(1), m["gamePk"])

	_, err = httpapi.DecodeObject([]byte(`{}`))
	require.ErrorIs(t, err, etl.ErrNoData)

	_, err = httpapi.DecodeObject([]byte(`null`))
	require.ErrorIs(t, err, etl.ErrNoData)

	_, err = httpapi.DecodeObject([]byte(`<html>`))
	require.True(t, retry.IsPermanent(err))
}

func TestNew_Tracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	for _, tracing := range []bool{false, true} {
		client := httpapi.New(httpapi.Options{BaseURL: srv.URL, Tracing: tracing, TracerName: "ballpark/statsapi"})
		_, err := client.R().Get("/api/v1/schedule")
		require.NoError(t, err)
	}

	spans := rec.Ended()
	require.Len(t, spans, 1, "only the traced client records a span")
	require.Equal(t, "ballpark/statsapi", spans[0].InstrumentationScope().Name)
}
