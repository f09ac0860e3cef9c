package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ems_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ems_http_requests_in_flight",
		Help: "Requests currently being served",
	})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_logins_total",
		Help: "Login attempts by kind and result",
	}, []string{"kind", "result"})

	invitations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_invitations_total",
		Help: "Invitation operations by result",
	}, []string{"result"})

	onboardingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_onboarding_transitions_total",
		Help: "Onboarding status transitions by target status",
	}, []string{"status"})

	documentUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_document_uploads_total",
		Help: "Document uploads by type and result",
	}, []string{"type", "result"})

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ems_document_upload_bytes",
		Help:    "Size of accepted document uploads",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6),
	})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_notifications_total",
		Help: "Notifications by kind and result",
	}, []string{"kind", "result"})

	sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_invitation_sweeps_total",
		Help: "Invitation expiry sweeps by result",
	}, []string{"result"})

	expiredInvitations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ems_invitations_expired_total",
		Help: "Invitations moved to EXPIRED by the sweeper",
	})

	pendingApprovals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ems_pending_approvals",
		Help: "Onboardings waiting for review at the last listing",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveLogin counts a login attempt; kind is "password" or "first_time".
func ObserveLogin(kind, result string) {
	logins.WithLabelValues(kind, result).Inc()
}

// ObserveInvitation counts an invite attempt by result.
func ObserveInvitation(result string) {
	invitations.WithLabelValues(result).Inc()
}

// ObserveOnboardingTransition counts a status change.
func ObserveOnboardingTransition(status string) {
	onboardingTransitions.WithLabelValues(status).Inc()
}

// ObserveUpload counts an upload; size is recorded only for accepted files.
func ObserveUpload(docType, result string, size int64) {
	documentUploads.WithLabelValues(docType, result).Inc()
	if result == "ok" {
		uploadBytes.Observe(float64(size))
	}
}

func ObserveNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

// ObserveSweep records one sweeper pass and how many invitations it expired.
func ObserveSweep(result string, expired int) {
	sweeps.WithLabelValues(result).Inc()
	if expired > 0 {
		expiredInvitations.Add(float64(expired))
	}
}

func SetPendingApprovals(count int) {
	if count < 0 {
		count = 0
	}
	pendingApprovals.Set(float64(count))
}
