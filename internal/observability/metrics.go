// Package observability exposes Prometheus metrics for the OTP flow.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
)

// Metrics contains the custom counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	OtpIssued      prometheus.Counter
	OtpRedemptions *prometheus.CounterVec
	MailDeliveries *prometheus.CounterVec
	SignupsTotal   *prometheus.CounterVec
}

// NewMetrics creates a registry with Go/process collectors plus the OTP counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OtpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpauth_otp_issued_total",
			Help: "Total number of one-time codes generated",
		}),
		OtpRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otpauth_otp_redemptions_total",
			Help: "Total number of one-time code redemption attempts by result",
		}, []string{"result"}),
		MailDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otpauth_mail_deliveries_total",
			Help: "Total number of verification emails by delivery result",
		}, []string{"result"}),
		SignupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otpauth_signups_total",
			Help: "Total number of signup attempts by result",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OtpIssued, m.OtpRedemptions, m.MailDeliveries, m.SignupsTotal,
	)
	return m
}

func (m *Metrics) IssuedOtp() {
	if m == nil {
		return
	}
	m.OtpIssued.Inc()
}

func (m *Metrics) Redemption(result string) {
	if m == nil {
		return
	}
	m.OtpRedemptions.WithLabelValues(result).Inc()
}

func (m *Metrics) MailDelivery(result string) {
	if m == nil {
		return
	}
	m.MailDeliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) Signup(result string) {
	if m == nil {
		return
	}
	m.SignupsTotal.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
