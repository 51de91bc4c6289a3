package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrumpts/cocoa-concierge/pkg/logger"
	"github.com/scrumpts/cocoa-concierge/pkg/metrics"
)

const (
	// CorrelationIDKey is the context key for correlation ID.
	CorrelationIDKey ContextKey = "correlation_id"

	// CorrelationHeader carries the correlation id in and out.
	CorrelationHeader = "X-Correlation-ID"

	requestInfoKey ContextKey = "request_info"
)

// requestInfo is filled in by inner middleware so the access log can see
// values set further down the chain.
type requestInfo struct {
	userID string
}

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Logging assigns a correlation id, writes one access log entry per request
// and records request metrics. Websocket requests are logged when the socket
// closes.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := r.Header.Get(CorrelationHeader)
			if correlationID == "" {
				correlationID = chimiddleware.GetReqID(r.Context())
			}
			if correlationID == "" {
				correlationID = uuid.NewString()
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			rec.Header().Set(CorrelationHeader, correlationID)

			info := &requestInfo{}
			ctx := context.WithValue(r.Context(), CorrelationIDKey, correlationID)
			ctx = context.WithValue(ctx, requestInfoKey, info)
			r = r.WithContext(ctx)

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			route := routePattern(r)

			log.ForRequest(correlationID, info.userID).Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Int64("bytes", rec.bytes),
				zap.Duration("duration", duration),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			)

			metrics.RecordRequest(r.Method, route, strconv.Itoa(rec.status), duration.Seconds())
		})
	}
}

// noteUserID records the authenticated user for the access log.
func noteUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = userID
	}
}

// routePattern keeps metric cardinality bounded by labelling with the chi
// route rather than the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// GetCorrelationID gets correlation ID from context.
func GetCorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return v
	}
	return ""
}
