// Package metrics exposes Prometheus counters for escrow activity and the
// gRPC surface.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal      *prometheus.CounterVec
	AmountTotal      *prometheus.CounterVec
	RPCRequestsTotal *prometheus.CounterVec
	RPCDuration      *prometheus.HistogramVec
	SinkFailures     prometheus.Counter
}

// New registers the escrow collectors on a fresh registry, together with
// the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_events_total",
				Help: "Total number of committed escrow events by type",
			},
			[]string{"type"},
		),
		AmountTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_amount_total",
				Help: "Total value moved in wei, by flow",
			},
			[]string{"flow"},
		),
		RPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_grpc_requests_total",
				Help: "Total number of gRPC requests by method and status code",
			},
			[]string{"method", "code"},
		),
		RPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "escrow_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		SinkFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "escrow_event_sink_failures_total",
				Help: "Total number of events a sink failed to record",
			},
		),
	}
	m.registry.MustRegister(
		m.EventsTotal,
		m.AmountTotal,
		m.RPCRequestsTotal,
		m.RPCDuration,
		m.SinkFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record implements event.Sink. It counts events and the value they move.
func (m *Metrics) Record(_ context.Context, events ...event.Event) error {
	for _, evt := range events {
		m.EventsTotal.WithLabelValues(string(evt.Type)).Inc()
		flow, amount := amountOf(evt)
		if !amount.IsZero() {
			m.AmountTotal.WithLabelValues(flow).Add(amount.Float64())
		}
	}
	return nil
}

// SinkFailed counts events a sink dropped.
func (m *Metrics) SinkFailed(count int) {
	m.SinkFailures.Add(float64(count))
}

func amountOf(evt event.Event) (string, ledger.Amount) {
	switch evt.Type {
	case event.TypeDonationReceived:
		var payload event.DonationReceivedPayload
		if evt.Decode(&payload) == nil {
			return "donated", payload.Amount
		}
	case event.TypeDonationRefunded:
		var payload event.DonationRefundedPayload
		if evt.Decode(&payload) == nil {
			return "refunded", payload.RefundedAmount
		}
	case event.TypePenaltyClaimed:
		var payload event.PenaltyClaimedPayload
		if evt.Decode(&payload) == nil {
			return "penalty_claimed", payload.Amount
		}
	case event.TypeMilestoneWithdrawn:
		var payload event.MilestoneWithdrawnPayload
		if evt.Decode(&payload) == nil {
			return "withdrawn", payload.OwnerAmount
		}
	case event.TypePlatformFeeReceived:
		var payload event.PlatformFeeReceivedPayload
		if evt.Decode(&payload) == nil {
			return "fees", payload.Amount
		}
	}
	return "", ledger.Amount{}
}

// UnaryServerInterceptor counts and times every unary call.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.RPCDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		m.RPCRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}
