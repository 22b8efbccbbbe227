package admin

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxAuditBodyBytes = 1024 // 1KB summary limit

// generateRequestID creates a short random request ID for audit correlation.
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// mutatingMethod reports whether the request can change state and therefore
// belongs in the audit trail.
func mutatingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// sensitiveKey marks JSON fields whose values never belong in logs.
func sensitiveKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "token") ||
		strings.Contains(k, "secret") ||
		strings.Contains(k, "password") ||
		strings.Contains(k, "webhook")
}

// summarizeBody renders up to maxAuditBodyBytes of the request body for
// the audit line. JSON objects get sensitive top-level values masked;
// anything else is logged as-is, truncated.
func summarizeBody(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			for k := range obj {
				if sensitiveKey(k) {
					obj[k] = "[redacted]"
				}
			}
			if out, err := json.Marshal(obj); err == nil {
				raw = out
			}
		}
	}
	if len(raw) > maxAuditBodyBytes {
		return string(raw[:maxAuditBodyBytes]) + "...(truncated)"
	}
	return string(raw)
}

// AuditMiddleware logs every mutating request for the operational audit
// trail and stamps the response with an X-Request-Id for correlation.
// The bearer token itself is never logged, only whether one was
// presented.
func AuditMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	auditLogger := logger.With("component", "admin_audit")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mutatingMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		requestID := generateRequestID()
		hasToken := r.Header.Get("Authorization") != ""

		// Peek at the body for the summary, then splice the unread
		// remainder back so large bodies reach the handler intact.
		var bodySummary string
		if r.Body != nil {
			peek, err := io.ReadAll(io.LimitReader(r.Body, maxAuditBodyBytes+1))
			if err == nil {
				bodySummary = summarizeBody(peek)
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(peek), r.Body))
			}
		}

		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		sw.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(sw, r)

		auditLogger.Info("admin API audit",
			"request_id", requestID,
			"timestamp", start.UTC().Format(time.RFC3339),
			"has_token", hasToken,
			"client_ip", clientIP(r),
			"method", r.Method,
			"path", r.URL.Path,
			"body_summary", bodySummary,
			"response_status", sw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.written = true
	}
	return sw.ResponseWriter.Write(b)
}
