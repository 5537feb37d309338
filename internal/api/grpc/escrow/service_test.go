package escrow

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/factory"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/policy"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/settle"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/idempotency"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const day = 24 * time.Hour

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	client  *Client
	clock   *testClock
	ledger  *ledger.Memory
	log     *event.Log
	factory *factory.Factory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		ledger: ledger.NewMemory(),
		log:    event.NewLog(),
	}
	f, err := factory.New(factory.Config{
		Owner:  "operator",
		Store:  settle.NewMemory(h.ledger, h.log),
		Policy: policy.Default(),
		Clock:  h.clock.Now,
	})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	h.factory = f

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(Interceptors(ChainConfig{
		Idempotency: idempotency.NewMemory(h.clock.Now),
		Clock:       h.clock.Now,
	})...))
	RegisterEscrowServer(server, NewService(f, h.ledger, h.ledger))
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	h.client = NewClient(conn)
	return h
}

func as(caller string, pairs ...string) context.Context {
	ctx := context.Background()
	if caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-escrow-caller", caller)
	}
	if len(pairs) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
	}
	return ctx
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	in, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("new struct: %v", err)
	}
	return in
}

func (h *harness) call(t *testing.T, ctx context.Context, method string, fields map[string]any) *structpb.Struct {
	t.Helper()
	out, err := h.client.Call(ctx, method, request(t, fields))
	if err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	return out
}

func (h *harness) fund(t *testing.T, account, amount string) {
	t.Helper()
	h.call(t, as("operator"), DepositMethod, map[string]any{"account": account, "amount": amount})
}

func (h *harness) createCampaign(t *testing.T) string {
	t.Helper()
	out := h.call(t, as("creator"), CreateCampaignMethod, map[string]any{
		"goal_amount": "10000",
		"deadline":    h.clock.Now().Add(30 * day).Format(time.RFC3339),
		"category":    "education",
		"details_id":  "ipfs://details",
	})
	return out.GetFields()["campaign"].GetStructValue().GetFields()["campaign_id"].GetStringValue()
}

func field(out *structpb.Struct, name string) string {
	return out.GetFields()[name].GetStringValue()
}

func TestCampaignLifecycleOverGRPC(t *testing.T) {
	h := newHarness(t)
	h.fund(t, "alice", "5000")
	h.fund(t, "bob", "5000")

	campaignID := h.createCampaign(t)
	if campaignID == "" {
		t.Fatal("expected campaign id")
	}

	donated := h.call(t, as("alice"), DonateMethod, map[string]any{"campaign_id": campaignID, "amount": "3000"})
	if field(donated, "balance") != "3000" || field(donated, "donation") != "3000" {
		t.Fatalf("unexpected donate response %v", donated)
	}
	h.call(t, as("bob"), DonateMethod, map[string]any{"campaign_id": campaignID, "amount": float64(1000)})

	got := h.call(t, as(""), GetDonationMethod, map[string]any{"campaign_id": campaignID, "donor": "bob"})
	if field(got, "amount") != "1000" {
		t.Fatalf("bob donation = %q, want 1000", field(got, "amount"))
	}

	milestone := h.call(t, as("creator"), CreateMilestoneMethod, map[string]any{"campaign_id": campaignID, "content_ref": "ipfs://m1"})
	if got := milestone.GetFields()["milestone"].GetStructValue().GetFields()["status"].GetStringValue(); got != "pending" {
		t.Fatalf("milestone status = %q, want pending", got)
	}

	h.clock.Advance(15 * day)
	withdrawn := h.call(t, as("creator"), WithdrawMilestoneMethod, map[string]any{"campaign_id": campaignID})
	if field(withdrawn, "status") != "withdrawn" || !withdrawn.GetFields()["released"].GetBoolValue() {
		t.Fatalf("unexpected withdraw response %v", withdrawn)
	}
	// gross = 4000 * 3333 / 10000 = 1333, fee = 13.
	if field(withdrawn, "owner_amount") != "1320" || field(withdrawn, "fee_amount") != "13" || field(withdrawn, "balance") != "2667" {
		t.Fatalf("unexpected amounts %v", withdrawn)
	}

	details := h.call(t, as(""), GetFundingDetailsMethod, map[string]any{"campaign_id": campaignID})
	campaignFields := details.GetFields()["campaign"].GetStructValue().GetFields()
	if campaignFields["balance"].GetStringValue() != "2667" || campaignFields["owner"].GetStringValue() != "creator" {
		t.Fatalf("unexpected details %v", details)
	}
	if n := len(details.GetFields()["milestones"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("milestones = %d, want 1", n)
	}

	refund := h.call(t, as("bob"), RetrieveDonationMethod, map[string]any{"campaign_id": campaignID})
	if field(refund, "refund") != "800" || field(refund, "retained") != "200" {
		t.Fatalf("unexpected refund %v", refund)
	}
	details = h.call(t, as(""), GetFundingDetailsMethod, map[string]any{"campaign_id": campaignID})
	if got := details.GetFields()["campaign"].GetStructValue().GetFields()["retained_penalty"].GetStringValue(); got != "200" {
		t.Fatalf("retained penalty = %q, want 200", got)
	}
	claimed := h.call(t, as("creator"), ClaimRetainedPenaltyMethod, map[string]any{"campaign_id": campaignID})
	if field(claimed, "amount") != "200" || field(claimed, "balance") != "1667" {
		t.Fatalf("unexpected penalty claim %v", claimed)
	}

	list := h.call(t, as(""), ListCampaignsMethod, map[string]any{"owner": "creator"})
	if n := len(list.GetFields()["campaigns"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("campaigns = %d, want 1", n)
	}

	fees := h.call(t, as("operator"), WithdrawPlatformFeesMethod, map[string]any{"to": "treasury"})
	if field(fees, "amount") != "13" || field(fees, "to") != "treasury" {
		t.Fatalf("unexpected fee sweep %v", fees)
	}
	if err := h.log.Verify(); err != nil {
		t.Fatalf("journal: %v", err)
	}
}

func TestWeiAmountsOverGRPC(t *testing.T) {
	h := newHarness(t)
	h.fund(t, "alice", "50000000000000000000")
	campaignID := h.createCampaign(t)

	donated := h.call(t, as("alice"), DonateMethod, map[string]any{"campaign_id": campaignID, "amount": "20000000000000000000"})
	if field(donated, "balance") != "20000000000000000000" {
		t.Fatalf("unexpected donate response %v", donated)
	}
	got := h.call(t, as(""), GetDonationMethod, map[string]any{"campaign_id": campaignID, "donor": "alice"})
	if field(got, "amount") != "20000000000000000000" {
		t.Fatalf("alice donation = %q", field(got, "amount"))
	}
	if balance, _ := h.ledger.BalanceOf(context.Background(), "alice"); balance.String() != "30000000000000000000" {
		t.Fatalf("alice balance = %s, want 30 ether", balance)
	}
}

func TestVoteOverGRPC(t *testing.T) {
	h := newHarness(t)
	h.fund(t, "alice", "5000")
	campaignID := h.createCampaign(t)
	h.call(t, as("alice"), DonateMethod, map[string]any{"campaign_id": campaignID, "amount": "100"})
	h.call(t, as("creator"), CreateMilestoneMethod, map[string]any{"campaign_id": campaignID})

	vote := h.call(t, as("alice"), VoteOnMilestoneMethod, map[string]any{"campaign_id": campaignID, "approve": true})
	fields := vote.GetFields()["vote"].GetStructValue().GetFields()
	if fields["voter"].GetStringValue() != "alice" || !fields["approve"].GetBoolValue() || fields["weight"].GetStringValue() != "100" {
		t.Fatalf("unexpected vote %v", vote)
	}

	_, err := h.client.Call(as("alice"), VoteOnMilestoneMethod, request(t, map[string]any{"campaign_id": campaignID, "approve": false}))
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("second vote code = %s, want AlreadyExists", status.Code(err))
	}
	_, err = h.client.Call(as("alice"), VoteOnMilestoneMethod, request(t, map[string]any{"campaign_id": campaignID}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("missing approve code = %s, want InvalidArgument", status.Code(err))
	}
}

func errorReason(err error) (string, *errdetails.LocalizedMessage) {
	st, _ := status.FromError(err)
	var (
		reason    string
		localized *errdetails.LocalizedMessage
	)
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			reason = d.GetReason()
		case *errdetails.LocalizedMessage:
			localized = d
		}
	}
	return reason, localized
}

func TestErrorsOverGRPC(t *testing.T) {
	h := newHarness(t)
	h.fund(t, "alice", "5000")
	campaignID := h.createCampaign(t)

	tests := []struct {
		name       string
		ctx        context.Context
		method     string
		fields     map[string]any
		wantCode   codes.Code
		wantReason string
	}{
		{name: "missing caller", ctx: as(""), method: DonateMethod, fields: map[string]any{"campaign_id": campaignID, "amount": "1"}, wantCode: codes.Unauthenticated, wantReason: "UNAUTHENTICATED"},
		{name: "not owner", ctx: as("alice"), method: CreateMilestoneMethod, fields: map[string]any{"campaign_id": campaignID}, wantCode: codes.PermissionDenied, wantReason: "NOT_CAMPAIGN_OWNER"},
		{name: "unknown campaign", ctx: as("alice"), method: DonateMethod, fields: map[string]any{"campaign_id": "nope", "amount": "1"}, wantCode: codes.NotFound, wantReason: "CAMPAIGN_NOT_FOUND"},
		{name: "zero donation", ctx: as("alice"), method: DonateMethod, fields: map[string]any{"campaign_id": campaignID, "amount": "0"}, wantCode: codes.InvalidArgument, wantReason: "INVALID_AMOUNT"},
		{name: "bad amount", ctx: as("alice"), method: DonateMethod, fields: map[string]any{"campaign_id": campaignID, "amount": "-5"}, wantCode: codes.InvalidArgument, wantReason: "INVALID_REQUEST"},
		{name: "amount beyond 256 bits", ctx: as("alice"), method: DonateMethod, fields: map[string]any{"campaign_id": campaignID, "amount": "1" + strings.Repeat("0", 78)}, wantCode: codes.InvalidArgument, wantReason: "INVALID_REQUEST"},
		{name: "claim by non owner", ctx: as("alice"), method: ClaimRetainedPenaltyMethod, fields: map[string]any{"campaign_id": campaignID}, wantCode: codes.PermissionDenied, wantReason: "NOT_CAMPAIGN_OWNER"},
		{name: "overdraw", ctx: as("alice"), method: DonateMethod, fields: map[string]any{"campaign_id": campaignID, "amount": "9999"}, wantCode: codes.FailedPrecondition, wantReason: "INSUFFICIENT_FUNDS"},
		{name: "no donation", ctx: as("alice"), method: RetrieveDonationMethod, fields: map[string]any{"campaign_id": campaignID}, wantCode: codes.FailedPrecondition, wantReason: "NO_DONATION_ON_RECORD"},
		{name: "no pending milestone", ctx: as("creator"), method: WithdrawMilestoneMethod, fields: map[string]any{"campaign_id": campaignID}, wantCode: codes.FailedPrecondition, wantReason: "NO_PENDING_MILESTONE"},
		{name: "deposit by non operator", ctx: as("alice"), method: DepositMethod, fields: map[string]any{"account": "alice", "amount": "1"}, wantCode: codes.PermissionDenied, wantReason: "NOT_FACTORY_OWNER"},
		{name: "bad deadline", ctx: as("creator"), method: CreateCampaignMethod, fields: map[string]any{"goal_amount": "1", "deadline": "tomorrow"}, wantCode: codes.InvalidArgument, wantReason: "INVALID_REQUEST"},
		{name: "zero goal", ctx: as("creator"), method: CreateCampaignMethod, fields: map[string]any{"goal_amount": "0", "deadline": "2030-01-01T00:00:00Z"}, wantCode: codes.InvalidArgument, wantReason: "INVALID_GOAL_AMOUNT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.client.Call(tt.ctx, tt.method, request(t, tt.fields))
			if status.Code(err) != tt.wantCode {
				t.Fatalf("code = %s, want %s (%v)", status.Code(err), tt.wantCode, err)
			}
			reason, localized := errorReason(err)
			if reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", reason, tt.wantReason)
			}
			if localized == nil || localized.GetMessage() == "" {
				t.Fatal("expected localized message")
			}
		})
	}
}

func TestErrorsAreLocalized(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Call(as("alice", "x-escrow-locale", "pt-BR"), DonateMethod, request(t, map[string]any{"campaign_id": "c1", "amount": "1"}))
	_, localized := errorReason(err)
	if localized == nil || localized.GetLocale() != "pt-BR" || localized.GetMessage() != "Campanha c1 não encontrada" {
		t.Fatalf("unexpected localized message %v", localized)
	}
}

func TestIdempotentDonation(t *testing.T) {
	h := newHarness(t)
	h.fund(t, "alice", "5000")
	campaignID := h.createCampaign(t)

	ctx := as("alice", "idempotency-key", "donate-1")
	first := h.call(t, ctx, DonateMethod, map[string]any{"campaign_id": campaignID, "amount": "100"})
	second := h.call(t, ctx, DonateMethod, map[string]any{"campaign_id": campaignID, "amount": "100"})
	if field(first, "balance") != "100" || field(second, "balance") != "100" {
		t.Fatalf("unexpected balances %v / %v", first, second)
	}
	if balance, _ := h.ledger.BalanceOf(context.Background(), "alice"); balance != ledger.NewAmount(4900) {
		t.Fatalf("alice balance = %s, want 4900", balance)
	}

	_, err := h.client.Call(ctx, DonateMethod, request(t, map[string]any{"campaign_id": campaignID, "amount": "200"}))
	if status.Code(err) != codes.Aborted {
		t.Fatalf("reused key code = %s, want Aborted", status.Code(err))
	}
}

func TestResponseCarriesRequestID(t *testing.T) {
	h := newHarness(t)
	var header metadata.MD
	_, err := h.client.Call(as("", "x-escrow-request-id", "req-42"), ListCampaignsMethod, &structpb.Struct{}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := header.Get("x-escrow-request-id"); len(got) != 1 || got[0] != "req-42" {
		t.Fatalf("request id header = %v", got)
	}
}
