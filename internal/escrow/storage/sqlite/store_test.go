package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/campaign"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/factory"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/policy"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/settle"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "escrow.sqlite")
	}
	store, err := Open(context.Background(), path, WithClock(func() time.Time { return testTime }))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func testEvent(t *testing.T, instanceID string, typ event.Type, payload any) event.Event {
	t.Helper()
	evt, err := event.New(instanceID, typ, "alice", testTime.Add(123*time.Microsecond), payload)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	return evt
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrow.sqlite")
	first, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	openTestStore(t, path)
}

func TestAppendStampsAndChains(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()

	first, err := store.Append(ctx, testEvent(t, "camp-1", event.TypeDonationReceived, event.DonationReceivedPayload{Donor: "alice", Amount: ledger.NewAmount(5), NewBalance: ledger.NewAmount(5)}))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := store.Append(ctx,
		testEvent(t, "camp-2", event.TypeDonationReceived, event.DonationReceivedPayload{Donor: "bob", Amount: ledger.NewAmount(1), NewBalance: ledger.NewAmount(1)}),
		testEvent(t, "camp-1", event.TypeDonationReceived, event.DonationReceivedPayload{Donor: "alice", Amount: ledger.NewAmount(5), NewBalance: ledger.NewAmount(10)}),
	)
	if err != nil {
		t.Fatalf("append batch: %v", err)
	}

	if first[0].Seq != 1 || first[0].PrevHash != "" || first[0].Hash == "" {
		t.Fatalf("unexpected first event %+v", first[0])
	}
	if second[0].Seq != 2 || second[0].PrevHash != first[0].Hash {
		t.Fatalf("expected second event chained to first, got %+v", second[0])
	}
	if second[1].Seq != 3 || second[1].PrevHash != second[0].Hash {
		t.Fatalf("expected third event chained to second, got %+v", second[1])
	}
	if !first[0].Timestamp.Equal(testTime) {
		t.Fatalf("timestamp = %s, want millisecond truncation to %s", first[0].Timestamp, testTime)
	}

	all, err := store.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[2].Hash != second[1].Hash || string(all[2].PayloadJSON) != string(second[1].PayloadJSON) {
		t.Fatal("expected stored event to round trip")
	}
	if err := store.VerifyIntegrity(ctx); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestListFilters(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		instance := "camp-a"
		if i%2 == 1 {
			instance = "camp-b"
		}
		if _, err := store.Append(ctx, testEvent(t, instance, event.TypeMilestoneRejected, event.MilestoneRejectedPayload{MilestoneID: uint64(i)})); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	tests := []struct {
		name     string
		instance string
		afterSeq uint64
		limit    int
		wantSeqs []uint64
	}{
		{name: "all", wantSeqs: []uint64{1, 2, 3, 4, 5}},
		{name: "instance", instance: "camp-a", wantSeqs: []uint64{1, 3, 5}},
		{name: "after seq", instance: "camp-a", afterSeq: 1, wantSeqs: []uint64{3, 5}},
		{name: "limit", afterSeq: 1, limit: 2, wantSeqs: []uint64{2, 3}},
		{name: "past end", afterSeq: 5, wantSeqs: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.instance, tt.afterSeq, tt.limit)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.wantSeqs) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.wantSeqs))
			}
			for i, evt := range got {
				if evt.Seq != tt.wantSeqs[i] {
					t.Fatalf("event %d seq = %d, want %d", i, evt.Seq, tt.wantSeqs[i])
				}
			}
		})
	}
}

func TestAppendRejectsInvalidBatchAtomically(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()
	valid := testEvent(t, "camp-1", event.TypeMilestoneRejected, event.MilestoneRejectedPayload{MilestoneID: 1})
	invalid := valid
	invalid.Type = "made.up"

	if _, err := store.Append(ctx, valid, invalid); err == nil {
		t.Fatal("expected unknown type error")
	}
	got, err := store.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no events stored, got %d", len(got))
	}
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := store.Append(ctx, testEvent(t, "camp-1", event.TypeMilestoneRejected, event.MilestoneRejectedPayload{MilestoneID: uint64(i)})); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := store.sqlDB.ExecContext(ctx, `UPDATE events SET payload_json = ? WHERE seq = 2`, []byte(`{"milestone_id":99}`)); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := store.VerifyIntegrity(ctx); err == nil {
		t.Fatal("expected tampering to be detected")
	}
}

func TestLedgerApplyIsAtomic(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()
	if err := store.Credit(ctx, "alice", ledger.NewAmount(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := store.Apply(ctx,
		ledger.Transfer{From: "alice", To: "bob", Amount: ledger.NewAmount(6)},
		ledger.Transfer{From: "alice", To: "carol", Amount: ledger.NewAmount(6)},
	)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got, _ := store.BalanceOf(ctx, "alice"); got != ledger.NewAmount(10) {
		t.Fatalf("alice = %s, want 10 after failed batch", got)
	}

	if err := store.Apply(ctx,
		ledger.Transfer{From: "alice", To: "bob", Amount: ledger.NewAmount(6)},
		ledger.Transfer{From: "bob", To: "carol", Amount: ledger.NewAmount(2)},
	); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for addr, want := range map[ledger.Address]uint64{"alice": 4, "bob": 4, "carol": 2, "nobody": 0} {
		if got := balanceOfT(t, store, addr); got != ledger.NewAmount(want) {
			t.Fatalf("%s = %s, want %d", addr, got, want)
		}
	}
}

func TestLedgerHoldsFullAmountRange(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()
	max := ledger.MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	if err := store.Credit(ctx, "whale", max); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := balanceOfT(t, store, "whale"); got != max {
		t.Fatalf("balance = %s, want %s", got, max)
	}
	var raw string
	if err := store.sqlDB.QueryRowContext(ctx, `SELECT balance FROM ledger_balances WHERE address = 'whale'`).Scan(&raw); err != nil {
		t.Fatalf("read column: %v", err)
	}
	if raw != max.String() {
		t.Fatalf("stored %q, want the decimal form", raw)
	}
	if err := store.Credit(ctx, "whale", ledger.NewAmount(1)); !errors.Is(err, ledger.ErrAmountOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if err := store.Credit(ctx, " ", ledger.NewAmount(1)); !errors.Is(err, ledger.ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
}

func TestCommitIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name     string
		trigger  bool
		transfer ledger.Amount
	}{
		{name: "journal insert fails", trigger: true, transfer: ledger.NewAmount(40)},
		{name: "ledger overdraws", transfer: ledger.NewAmount(400)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openTestStore(t, "")
			ctx := context.Background()
			if err := store.Credit(ctx, "alice", ledger.NewAmount(100)); err != nil {
				t.Fatalf("credit: %v", err)
			}
			if tt.trigger {
				rejectJournalInserts(t, store)
			}
			evt := testEvent(t, "camp-1", event.TypeDonationReceived, event.DonationReceivedPayload{
				Donor:      "alice",
				Amount:     tt.transfer,
				NewBalance: tt.transfer,
			})
			_, err := store.Commit(ctx, settle.Batch{
				Transfers: []ledger.Transfer{{From: "alice", To: "campaign:camp-1", Amount: tt.transfer}},
				Events:    []event.Event{evt},
			})
			if err == nil {
				t.Fatal("expected commit to fail")
			}
			if got := balanceOfT(t, store, "alice"); got != ledger.NewAmount(100) {
				t.Fatalf("alice = %s, want 100", got)
			}
			if got := balanceOfT(t, store, "campaign:camp-1"); !got.IsZero() {
				t.Fatalf("campaign = %s, want 0", got)
			}
			if events, _ := store.List(ctx, "", 0, 0); len(events) != 0 {
				t.Fatalf("journal holds %d events after a failed commit", len(events))
			}
		})
	}
}

func TestCommitStoresTransfersAndEvents(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()
	if err := store.Credit(ctx, "alice", ether(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	evt := testEvent(t, "camp-1", event.TypeDonationReceived, event.DonationReceivedPayload{Donor: "alice", Amount: ether(40), NewBalance: ether(40)})
	stamped, err := store.Commit(ctx, settle.Batch{
		Transfers: []ledger.Transfer{{From: "alice", To: "campaign:camp-1", Amount: ether(40)}},
		Events:    []event.Event{evt},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(stamped) != 1 || stamped[0].Seq != 1 {
		t.Fatalf("unexpected stamped events %+v", stamped)
	}
	if got := balanceOfT(t, store, "campaign:camp-1"); got != ether(40) {
		t.Fatalf("campaign = %s, want %s", got, ether(40))
	}
	var payload event.DonationReceivedPayload
	if err := stamped[0].Decode(&payload); err != nil || payload.Amount != ether(40) {
		t.Fatalf("payload %+v, %v", payload, err)
	}
}

// TestDonateFailsWhenJournalInsertFails makes the events table refuse
// writes mid-campaign. The donation must fail as a whole and a restore from
// the journal must still match the ledger.
func TestDonateFailsWhenJournalInsertFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrow.sqlite")
	ctx := context.Background()
	store := openTestStore(t, path)
	for _, addr := range []ledger.Address{"creator", "alice"} {
		if err := store.Credit(ctx, addr, ether(10)); err != nil {
			t.Fatalf("credit %s: %v", addr, err)
		}
	}
	live := newStoreFactory(t, store)
	c, err := live.Create(ctx, factory.CreateInput{Owner: "creator", GoalAmount: ether(50), Deadline: testTime.Add(time.Hour), InitialDeposit: ether(1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	aliceBefore := balanceOfT(t, store, "alice")
	accountBefore := balanceOfT(t, store, c.Address())
	campaignBefore := c.Balance()

	drop := rejectJournalInserts(t, store)
	if _, err := c.Donate(ctx, "alice", ledger.NewAmount(4000)); err == nil {
		t.Fatal("expected donation to fail when the journal rejects it")
	}
	if got := balanceOfT(t, store, "alice"); got != aliceBefore {
		t.Fatalf("alice = %s, want %s", got, aliceBefore)
	}
	if got := balanceOfT(t, store, c.Address()); got != accountBefore {
		t.Fatalf("campaign account = %s, want %s", got, accountBefore)
	}
	if c.Balance() != campaignBefore || !c.DonationOf("alice").IsZero() {
		t.Fatalf("campaign state moved: balance %s", c.Balance())
	}
	drop()

	events, err := store.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	restored := newStoreFactory(t, store)
	if err := restored.Restore(events); err != nil {
		t.Fatalf("restore: %v", err)
	}
	replayed, err := restored.Campaign(c.ID())
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	snapshot := replayed.Snapshot()
	if snapshot.Balance != c.Balance() || !replayed.DonationOf("alice").IsZero() {
		t.Fatalf("restored balance %s, live %s", snapshot.Balance, c.Balance())
	}
	if onLedger := balanceOfT(t, store, c.Address()); onLedger != snapshot.Balance {
		t.Fatalf("campaign account %s, restored balance %s", onLedger, snapshot.Balance)
	}

	if _, err := c.Donate(ctx, "alice", ledger.NewAmount(4000)); err != nil {
		t.Fatalf("donate after journal recovers: %v", err)
	}
	if err := store.VerifyIntegrity(ctx); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

// TestFactorySurvivesReopen runs a campaign against the store, reopens the
// database and restores the same state from the journal.
func TestFactorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrow.sqlite")
	ctx := context.Background()

	store := openTestStore(t, path)
	for _, addr := range []ledger.Address{"creator", "alice"} {
		if err := store.Credit(ctx, addr, ether(100)); err != nil {
			t.Fatalf("credit %s: %v", addr, err)
		}
	}
	live := newStoreFactory(t, store)
	c, err := live.Create(ctx, factory.CreateInput{Owner: "creator", GoalAmount: ether(500), Deadline: testTime.Add(time.Hour), InitialDeposit: ether(1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := c.Donate(ctx, "alice", ether(40)); err != nil {
		t.Fatalf("donate: %v", err)
	}
	if _, err := c.RetrieveDonatedAmount(ctx, "alice"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := c.CreateMilestone(ctx, "creator", "ipfs://m1"); err != nil {
		t.Fatalf("milestone: %v", err)
	}

	reopened := openTestStore(t, path)
	if err := reopened.VerifyIntegrity(ctx); err != nil {
		t.Fatalf("verify: %v", err)
	}
	events, err := reopened.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	restored := newStoreFactory(t, reopened)
	if err := restored.Restore(events); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err := restored.Campaign(c.ID())
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Balance() != c.Balance() || !got.DonationOf("alice").IsZero() || got.DonationOf("creator") != ether(1) {
		t.Fatalf("restored balance %s, want %s", got.Balance(), c.Balance())
	}
	if m, ok := got.CurrentMilestone(); !ok || m.Status != campaign.StatusPending {
		t.Fatalf("expected pending milestone after restore, got %+v", m)
	}
	snapshot := got.Snapshot()
	if snapshot.RetainedPenalty != ether(8) {
		t.Fatalf("retained penalty = %s, want %s", snapshot.RetainedPenalty, ether(8))
	}
	want, err := snapshot.Balance.Add(snapshot.RetainedPenalty)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if onLedger := balanceOfT(t, reopened, c.Address()); onLedger != want {
		t.Fatalf("campaign account %s, want balance %s plus retained %s", onLedger, snapshot.Balance, snapshot.RetainedPenalty)
	}
}

// ether returns n whole coins in wei.
func ether(n uint64) ledger.Amount {
	return ledger.MustParseAmount(strconv.FormatUint(n, 10) + "000000000000000000")
}

func balanceOfT(t *testing.T, store *Store, addr ledger.Address) ledger.Amount {
	t.Helper()
	got, err := store.BalanceOf(context.Background(), addr)
	if err != nil {
		t.Fatalf("balance of %s: %v", addr, err)
	}
	return got
}

func newStoreFactory(t *testing.T, store *Store) *factory.Factory {
	t.Helper()
	f, err := factory.New(factory.Config{
		Owner:  "platform",
		Store:  store,
		Policy: policy.Default(),
		Clock:  func() time.Time { return testTime },
	})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	return f
}

// rejectJournalInserts installs a trigger that aborts every insert into
// events and returns a func that removes it.
func rejectJournalInserts(t *testing.T, store *Store) func() {
	t.Helper()
	ctx := context.Background()
	if _, err := store.sqlDB.ExecContext(ctx, `CREATE TRIGGER reject_events BEFORE INSERT ON events
		BEGIN SELECT RAISE(ABORT, 'journal rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	return func() {
		if _, err := store.sqlDB.ExecContext(ctx, `DROP TRIGGER reject_events`); err != nil {
			t.Fatalf("drop trigger: %v", err)
		}
	}
}
