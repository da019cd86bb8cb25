package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"strconv"
)

// Login results recorded by the Logins counter
const (
	LoginSucceeded = "succeeded"
	LoginFailed    = "failed"
)

// Metrics holds all Prometheus metrics of the inbox portal
type Metrics struct {
	Logins          *prometheus.CounterVec
	MessageFetches  *prometheus.CounterVec
	SessionsCreated prometheus.Counter
	SessionsExpired prometheus.Counter
}

// New creates all metrics and registers them at the given registerer
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_logins_total",
			Help: "Total number of completed OAuth callbacks by result",
		}, []string{"result"}),
		MessageFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_message_fetches_total",
			Help: "Total number of message list requests sent to the downstream API by response status",
		}, []string{"status"}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox_sessions_expired_total",
			Help: "Total number of expired sessions purged from the session storage",
		}),
	}
}

// ObserveLogin records the result of an OAuth callback
func (m *Metrics) ObserveLogin(result string) {
	m.Logins.WithLabelValues(result).Inc()
}

// ObserveMessageFetch records the status code returned by the downstream API.
// A status of 0 denotes a transport failure.
func (m *Metrics) ObserveMessageFetch(status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.MessageFetches.WithLabelValues(label).Inc()
}
