package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/omnivault/crosschain-composer/internal/metrics"
)

// AlertType categorizes the kind of alert.
type AlertType string

const (
	AlertTypeUnhealthy      AlertType = "UNHEALTHY"
	AlertTypeRecovery       AlertType = "RECOVERY"
	AlertTypeCustodyFailure AlertType = "CUSTODY_FAILURE"
	AlertTypeBreakerOpen    AlertType = "BREAKER_OPEN"
	AlertTypeDrift          AlertType = "DRIFT"
	AlertTypeDBPool         AlertType = "DB_POOL"
)

// Severity ranks how urgently a human should look at an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// defaultSeverity maps alert types to severities for senders that leave
// the field unset. Custody failures and share drift are the two
// conditions that can mean user funds are wrong, so they page hardest.
func defaultSeverity(t AlertType) Severity {
	switch t {
	case AlertTypeRecovery:
		return SeverityInfo
	case AlertTypeCustodyFailure, AlertTypeDrift:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// Alert represents a single alert event.
type Alert struct {
	Type     AlertType
	Severity Severity
	Chain    string
	Title    string
	Message  string
	Fields   map[string]string
}

func (a Alert) severity() Severity {
	if a.Severity != "" {
		return a.Severity
	}
	return defaultSeverity(a.Type)
}

// Alerter is the interface for sending alerts.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// criticalCooldownDivisor shortens the suppression window for critical
// alerts. A custody failure that persists past a quarter of the base
// cooldown deserves another page.
const criticalCooldownDivisor = 4

type channel struct {
	name string
	sink Alerter
}

// MultiAlerter fans out alerts to named channels with per-(type, chain)
// cooldown suppression.
type MultiAlerter struct {
	cooldown time.Duration
	logger   *slog.Logger
	channels []channel

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewMultiAlerter creates an alerter with no channels. Channels are
// attached with AddChannel; sending with zero channels is a no-op.
func NewMultiAlerter(cooldown time.Duration, logger *slog.Logger) *MultiAlerter {
	return &MultiAlerter{
		cooldown: cooldown,
		logger:   logger.With("component", "alerter"),
		lastSent: make(map[string]time.Time),
	}
}

// AddChannel attaches a delivery channel. The name labels metrics and
// logs for this channel.
func (m *MultiAlerter) AddChannel(name string, sink Alerter) {
	m.channels = append(m.channels, channel{name: name, sink: sink})
}

// ChannelCount reports how many channels are attached.
func (m *MultiAlerter) ChannelCount() int {
	return len(m.channels)
}

func suppressionKey(a Alert) string {
	return fmt.Sprintf("%s:%s", a.Type, a.Chain)
}

// shouldSend decides whether the alert passes the cooldown gate and
// records the send time when it does. A recovery alert re-arms the
// unhealthy slot for its chain so the next incident pages immediately
// instead of being swallowed by the previous window.
func (m *MultiAlerter) shouldSend(a Alert) bool {
	window := m.cooldown
	if a.severity() == SeverityCritical {
		window /= criticalCooldownDivisor
	}

	key := suppressionKey(a)

	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastSent[key]; ok && time.Since(last) < window {
		return false
	}
	m.lastSent[key] = time.Now()

	if a.Type == AlertTypeRecovery {
		delete(m.lastSent, suppressionKey(Alert{Type: AlertTypeUnhealthy, Chain: a.Chain}))
	}
	return true
}

// Send dispatches the alert to every channel, respecting cooldown. It
// returns the first channel error but still attempts all channels.
func (m *MultiAlerter) Send(ctx context.Context, a Alert) error {
	if !m.shouldSend(a) {
		m.logger.Debug("alert suppressed by cooldown", "type", a.Type, "chain", a.Chain)
		for _, ch := range m.channels {
			metrics.AlertsCooldownSkipped.WithLabelValues(ch.name, string(a.Type)).Inc()
		}
		return nil
	}

	var firstErr error
	for _, ch := range m.channels {
		if err := ch.sink.Send(ctx, a); err != nil {
			m.logger.Warn("alert send failed",
				"channel", ch.name,
				"type", a.Type,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.AlertsSentTotal.WithLabelValues(ch.name, string(a.Type)).Inc()
	}
	return firstErr
}

// sortedFieldKeys keeps rendered field order stable across sends.
func sortedFieldKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// postJSON marshals payload and POSTs it, treating any non-2xx status
// as an error.
func postJSON(ctx context.Context, client *http.Client, url, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s alert: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", kind, resp.StatusCode)
	}
	return nil
}

// SlackAlerter sends alerts to a Slack incoming webhook.
type SlackAlerter struct {
	webhookURL string
	client     *http.Client
}

// NewSlackAlerter creates a Slack alerter with the given webhook URL.
func NewSlackAlerter(webhookURL string) *SlackAlerter {
	return &SlackAlerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func severityEmoji(s Severity) string {
	switch s {
	case SeverityInfo:
		return ":white_check_mark:"
	case SeverityCritical:
		return ":rotating_light:"
	default:
		return ":warning:"
	}
}

// Send renders the alert as a single Slack message.
func (s *SlackAlerter) Send(ctx context.Context, a Alert) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *[%s]* %s: %s\n%s",
		severityEmoji(a.severity()), a.Type, a.Chain, a.Title, a.Message)
	for _, k := range sortedFieldKeys(a.Fields) {
		fmt.Fprintf(&b, "\n- *%s*: %s", k, a.Fields[k])
	}

	return postJSON(ctx, s.client, s.webhookURL, "slack", map[string]string{"text": b.String()})
}

// WebhookAlerter sends alerts to a generic HTTP webhook.
type WebhookAlerter struct {
	url    string
	client *http.Client
}

// NewWebhookAlerter creates a generic webhook alerter.
func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the alert as a flat JSON document.
func (w *WebhookAlerter) Send(ctx context.Context, a Alert) error {
	payload := map[string]any{
		"source":   "composerd",
		"type":     string(a.Type),
		"severity": string(a.severity()),
		"chain":    a.Chain,
		"title":    a.Title,
		"message":  a.Message,
		"fields":   a.Fields,
		"sent_at":  time.Now().UTC().Format(time.RFC3339),
	}
	return postJSON(ctx, w.client, w.url, "webhook", payload)
}

// NoopAlerter does nothing. Used when no alert channels are configured.
type NoopAlerter struct{}

func (n *NoopAlerter) Send(_ context.Context, _ Alert) error { return nil }
