// Package campaign implements the per-campaign escrow state machine:
// donations, the milestone lifecycle, weighted voting, tranche withdrawal
// and donor refunds.
//
// Every mutating call runs under the campaign mutex and follows the same
// steps: validate every precondition, fold the new events into a copy of
// state, commit the transfers and events as one batch, then swap the copy
// in and hand the stamped events to observers. A failed precondition or
// commit leaves state, balances and the journal untouched.
package campaign

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/policy"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/settle"
)

// AddressPrefix namespaces campaign ledger accounts.
const AddressPrefix = "campaign:"

// AddressFor returns the ledger account that holds a campaign's escrow.
func AddressFor(id string) ledger.Address {
	return ledger.Address(AddressPrefix + id)
}

// FeeCollector receives the platform fee of every released tranche.
type FeeCollector interface {
	// FeeAddress is the ledger account fees are transferred to.
	FeeAddress() ledger.Address
	// ReceiveFee passes the platform's fee events to commit, which lands
	// them in the same batch as the tranche, and credits amount only when
	// commit succeeds.
	ReceiveFee(ctx context.Context, from ledger.Address, amount ledger.Amount, commit func(feeEvents ...event.Event) error) error
}

// Deps are the collaborators shared by every campaign a factory creates.
// None of them carry per-campaign mutable state.
type Deps struct {
	// Store lands ledger transfers and journal events atomically.
	Store  settle.Committer
	Policy policy.Policy
	Clock  func() time.Time
	// Sink observes committed events. Its failures never fail a call.
	Sink event.Sink
	Fees FeeCollector
}

func (d Deps) withDefaults() (Deps, error) {
	if d.Store == nil {
		return Deps{}, fmt.Errorf("store is required")
	}
	if d.Fees == nil {
		return Deps{}, fmt.Errorf("fee collector is required")
	}
	if err := d.Policy.Validate(); err != nil {
		return Deps{}, fmt.Errorf("policy: %w", err)
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Sink == nil {
		d.Sink = event.Discard
	}
	return d, nil
}

// Params describe a new campaign.
type Params struct {
	ID         string
	Owner      ledger.Address
	GoalAmount ledger.Amount
	Deadline   time.Time
	Category   string
	DetailsID  string
}

// Validate checks the creation preconditions against now.
func (p Params) Validate(now time.Time) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("campaign id is required")
	}
	if !p.Owner.Valid() {
		return ledger.ErrInvalidAddress
	}
	if p.GoalAmount.IsZero() {
		return ErrInvalidGoalAmount
	}
	if !p.Deadline.After(now) {
		return ErrInvalidDeadline
	}
	return nil
}

// Campaign is one escrow instance.
type Campaign struct {
	mu    sync.Mutex
	state State
	deps  Deps

	launched bool
	// created holds the creation event until Launch commits it.
	created event.Event
}

// New builds an unpublished campaign. Call Launch to fund and publish it.
func New(params Params, deps Deps) (*Campaign, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	c := &Campaign{deps: deps}
	now := c.now()
	if err := params.Validate(now); err != nil {
		return nil, err
	}

	created, err := event.New(params.ID, event.TypeCampaignCreated, string(params.Owner), now, event.CampaignCreatedPayload{
		CampaignID: params.ID,
		Address:    string(AddressFor(params.ID)),
		Owner:      string(params.Owner),
		GoalAmount: params.GoalAmount,
		Deadline:   params.Deadline.UTC(),
		Category:   strings.TrimSpace(params.Category),
		DetailsID:  strings.TrimSpace(params.DetailsID),
	})
	if err != nil {
		return nil, err
	}
	if err := Fold(&c.state, created); err != nil {
		return nil, err
	}
	c.created = created
	return c, nil
}

// Restore rebuilds a campaign from its journal. The first event must be
// campaign.created.
func Restore(deps Deps, events []event.Event) (*Campaign, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 || events[0].Type != event.TypeCampaignCreated {
		return nil, fmt.Errorf("restore campaign: first event must be %s", event.TypeCampaignCreated)
	}
	c := &Campaign{deps: deps, launched: true}
	for _, evt := range events {
		if err := Fold(&c.state, evt); err != nil {
			return nil, fmt.Errorf("restore campaign %s: %w", events[0].InstanceID, err)
		}
	}
	return c, nil
}

// Launch commits the creation event together with the creator's initial
// deposit, booked as the first donation. campaign.created therefore
// precedes every other event of the instance in the journal.
func (c *Campaign) Launch(ctx context.Context, deposit ledger.Amount) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.launched {
		return fmt.Errorf("campaign %s already launched", c.state.ID)
	}

	next := c.state.Clone()
	batch := settle.Batch{Events: []event.Event{c.created}}
	if !deposit.IsZero() {
		evt, transfer, err := c.donation(c.state.Owner, deposit)
		if err != nil {
			return fmt.Errorf("initial deposit: %w", err)
		}
		if err := Fold(&next, evt); err != nil {
			return fmt.Errorf("initial deposit: %w", err)
		}
		batch.Transfers = append(batch.Transfers, transfer)
		batch.Events = append(batch.Events, evt)
	}
	stamped, err := c.deps.Store.Commit(ctx, batch)
	if err != nil {
		return fmt.Errorf("launch campaign %s: %w", c.state.ID, err)
	}
	c.state = next
	c.launched = true
	c.created = event.Event{}
	c.emit(ctx, stamped...)
	return nil
}

func (c *Campaign) now() time.Time {
	return c.deps.Clock().UTC().Truncate(time.Millisecond)
}

// commit folds this campaign's events into a copy of state, lands the
// batch, and only then swaps the copy in. Events of other instances, such
// as platform fee events, ride along in the batch without being folded.
func (c *Campaign) commit(ctx context.Context, transfers []ledger.Transfer, events ...event.Event) ([]event.Event, error) {
	next := c.state.Clone()
	for _, evt := range events {
		if evt.InstanceID != next.ID {
			continue
		}
		if err := Fold(&next, evt); err != nil {
			return nil, fmt.Errorf("commit %s: %w", evt.Type, err)
		}
	}
	stamped, err := c.deps.Store.Commit(ctx, settle.Batch{Transfers: transfers, Events: events})
	if err != nil {
		return nil, err
	}
	c.state = next
	return stamped, nil
}

// emit hands committed events to observers. The sink logs its own
// failures.
func (c *Campaign) emit(ctx context.Context, events ...event.Event) {
	_ = c.deps.Sink.Record(context.WithoutCancel(ctx), events...)
}

// ID returns the campaign identifier.
func (c *Campaign) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ID
}

// Address returns the campaign's ledger account.
func (c *Campaign) Address() ledger.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Address
}

// Owner returns the owner address.
func (c *Campaign) Owner() ledger.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Owner
}

// FundingDetails returns the campaign summary.
func (c *Campaign) FundingDetails() FundingDetails {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.fundingDetails()
}

// Balance returns the spendable escrow balance.
func (c *Campaign) Balance() ledger.Amount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Balance
}

// DonationOf returns the donor's cumulative, unrefunded donation.
func (c *Campaign) DonationOf(donor ledger.Address) ledger.Amount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Donors[donor]
}

// Milestones returns copies of every milestone, oldest first.
func (c *Campaign) Milestones() []Milestone {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Milestone, len(c.state.Milestones))
	for i, m := range c.state.Milestones {
		out[i] = m.clone()
	}
	return out
}

// CurrentMilestone returns the newest milestone, whatever its status.
func (c *Campaign) CurrentMilestone() (Milestone, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.state.Milestones) == 0 {
		return Milestone{}, false
	}
	return c.state.Milestones[len(c.state.Milestones)-1].clone(), true
}

// Snapshot returns a deep copy of the campaign state.
func (c *Campaign) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// CheckInvariants verifies the campaign's accounting invariants.
func (c *Campaign) CheckInvariants() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CheckInvariants()
}
