package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newEvent(t *testing.T, typ event.Type, payload any) event.Event {
	t.Helper()
	evt, err := event.New("camp-1", typ, "alice", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), payload)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	return evt
}

func TestRecordCountsEventsAndAmounts(t *testing.T) {
	m := New()
	err := m.Record(context.Background(),
		newEvent(t, event.TypeDonationReceived, event.DonationReceivedPayload{Donor: "alice", Amount: ledger.NewAmount(500), NewBalance: ledger.NewAmount(500)}),
		newEvent(t, event.TypeDonationReceived, event.DonationReceivedPayload{Donor: "bob", Amount: ledger.NewAmount(250), NewBalance: ledger.NewAmount(750)}),
		newEvent(t, event.TypeDonationRefunded, event.DonationRefundedPayload{Donor: "bob", RefundedAmount: ledger.NewAmount(200), Donation: ledger.NewAmount(250)}),
		newEvent(t, event.TypeMilestoneRejected, event.MilestoneRejectedPayload{MilestoneID: 1}),
		newEvent(t, event.TypePenaltyClaimed, event.PenaltyClaimedPayload{Owner: "creator", Amount: ledger.NewAmount(50)}),
		newEvent(t, event.TypeDonationReceived, event.DonationReceivedPayload{Donor: "carol", Amount: ledger.MustParseAmount("5000000000000000000"), NewBalance: ledger.MustParseAmount("5000000000000000750")}),
	)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "donation events", got: testutil.ToFloat64(m.EventsTotal.WithLabelValues(string(event.TypeDonationReceived))), want: 3},
		{name: "rejections", got: testutil.ToFloat64(m.EventsTotal.WithLabelValues(string(event.TypeMilestoneRejected))), want: 1},
		{name: "donated amount", got: testutil.ToFloat64(m.AmountTotal.WithLabelValues("donated")), want: 5000000000000000750},
		{name: "refunded amount", got: testutil.ToFloat64(m.AmountTotal.WithLabelValues("refunded")), want: 200},
		{name: "claimed penalty", got: testutil.ToFloat64(m.AmountTotal.WithLabelValues("penalty_claimed")), want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestUnaryServerInterceptorLabelsStatus(t *testing.T) {
	m := New()
	interceptor := m.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/escrow.v1.EscrowService/Donate"}

	_, _ = interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) { return "ok", nil })
	_, _ = interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.PermissionDenied, "nope")
	})
	_, _ = interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) { return nil, errors.New("plain") })

	if got := testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues(info.FullMethod, codes.OK.String())); got != 1 {
		t.Fatalf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues(info.FullMethod, codes.PermissionDenied.String())); got != 1 {
		t.Fatalf("permission denied count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues(info.FullMethod, codes.Unknown.String())); got != 1 {
		t.Fatalf("unknown count = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SinkFailed(3)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "escrow_event_sink_failures_total 3") {
		t.Fatalf("expected sink failure counter in output:\n%s", body)
	}
}
