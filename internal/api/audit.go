package api

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/scorequest/scorequest-desktop/internal/leaderboard"
)

// AuditLogger records security and audit events. Tokens and secrets are
// never written; wallet addresses are shortened.
type AuditLogger struct {
	logger *log.Logger
}

// NewAuditLogger creates an audit logger writing to w, or stdout when w is nil
func NewAuditLogger(w io.Writer) *AuditLogger {
	if w == nil {
		w = os.Stdout
	}
	return &AuditLogger{
		logger: log.New(w, "[AUDIT] ", log.LstdFlags|log.LUTC),
	}
}

// LogSecurityEvent logs failed validations and rejected writes
func (al *AuditLogger) LogSecurityEvent(
	requestID string,
	eventType string,
	description string,
	context map[string]interface{},
	remoteAddr string,
) {
	al.logger.Printf(
		"security_event request_id=%s type=%s description=%q context=%+v remote_addr=%s version=%s timestamp=%s",
		requestID,
		eventType,
		description,
		sanitizeContext(context),
		remoteAddr,
		Version,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogAuditEvent logs a state-changing or monitoring action
func (al *AuditLogger) LogAuditEvent(
	requestID string,
	action string,
	resource string,
	outcome string,
	details map[string]interface{},
) {
	al.logger.Printf(
		"audit_event request_id=%s action=%s resource=%s outcome=%s details=%+v version=%s timestamp=%s",
		requestID,
		action,
		resource,
		outcome,
		sanitizeContext(details),
		Version,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogSystemStartup logs the listening address and sanitised settings
func (al *AuditLogger) LogSystemStartup(addr string, config map[string]interface{}) {
	al.logger.Printf(
		"system_startup addr=%s config=%+v version=%s git_commit=%s build_time=%s timestamp=%s",
		addr,
		sanitizeContext(config),
		Version,
		GitCommit,
		BuildTime,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogSystemShutdown logs why and after how long the server stopped
func (al *AuditLogger) LogSystemShutdown(reason string, uptime time.Duration) {
	al.logger.Printf(
		"system_shutdown reason=%s uptime=%v version=%s timestamp=%s",
		reason,
		uptime,
		Version,
		time.Now().UTC().Format(time.RFC3339),
	)
}

func sanitizeContext(context map[string]interface{}) map[string]interface{} {
	if context == nil {
		return nil
	}

	sanitized := make(map[string]interface{}, len(context))
	for key, value := range context {
		lower := strings.ToLower(key)
		if isSensitiveKey(lower) {
			sanitized[key] = "[REDACTED]"
			continue
		}
		switch lower {
		case "address", "wallet_address":
			if s, ok := value.(string); ok {
				sanitized[key] = leaderboard.ShortAddress(s)
			} else {
				sanitized[key] = value
			}
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}

var sensitiveKeyParts = []string{"token", "secret", "password", "authorization", "dsn"}

// isSensitiveKey matches keys such as db_dsn or submit_token by substring.
func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
