package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

func TestLogging_CorrelationAndAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	r := chi.NewRouter()
	r.Use(Logging(log))
	r.With(Auth(testSecret)).Get("/api/chat/{userId}", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "corr-42", GetCorrelationID(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/chat/u1", nil)
	req.Header.Set(CorrelationHeader, "corr-42")
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u1", time.Now().Add(time.Hour)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusTeapot, w.Code)
	require.Equal(t, "corr-42", w.Header().Get(CorrelationHeader))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "corr-42", fields["correlation_id"])
	require.Equal(t, "u1", fields["user_id"])
	require.Equal(t, "/api/chat/{userId}", fields["route"])
	require.EqualValues(t, http.StatusTeapot, fields["status"])
}

func TestLogging_GeneratesCorrelationID(t *testing.T) {
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, GetCorrelationID(r.Context()))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NotEmpty(t, w.Header().Get(CorrelationHeader))
}
