package audit

import (
	"log"
	"net/http"
	"strings"

	"unified-nms/internal/auth"
)

// Middleware records alarm state changes performed over HTTP. Failures to
// write the audit row never block the request.
type Middleware struct {
	logger   Logger
	fallback *log.Logger
}

// NewMiddleware constructs an audit middleware.
func NewMiddleware(logger Logger, fallback *log.Logger) *Middleware {
	if fallback == nil {
		fallback = log.Default()
	}
	return &Middleware{logger: logger, fallback: fallback}
}

// Wrap logs POSTs against alarm resources after the handler runs.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/api/v1/alarms/") {
			return
		}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/alarms/"), "/")
		if len(parts) != 2 {
			return
		}
		entry := Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       parts[1],
			ResourceType: "alarm",
			ResourceID:   parts[0],
			IP:           r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		}
		if err := m.logger.Log(r.Context(), entry); err != nil {
			m.fallback.Printf("audit log failed: action=%s resource=%s err=%v", entry.Action, entry.ResourceID, err)
		}
	})
}
