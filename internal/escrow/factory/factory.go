// Package factory originates campaigns from one shared template, keeps the
// registry of created instances and collects platform fees.
package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/campaign"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/policy"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/settle"
	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/id"
)

// DefaultAddress is the ledger account that holds platform fees.
const DefaultAddress ledger.Address = "factory:platform"

// Config wires a factory.
type Config struct {
	// Owner may sweep platform fees.
	Owner ledger.Address
	// Address receives platform fees. Defaults to DefaultAddress.
	Address ledger.Address
	// Store lands every ledger move together with its journal events.
	Store       settle.Committer
	Policy      policy.Policy
	Clock       func() time.Time
	IDGenerator func() (string, error)
	Sink        event.Sink
}

// Entry is one registry row.
type Entry struct {
	CampaignID string
	Address    ledger.Address
	Owner      ledger.Address
	CreatedAt  time.Time
}

// Factory creates campaigns and receives their fees. Lock order is
// campaign then factory: a withdrawing campaign calls ReceiveFee while
// holding its own lock.
type Factory struct {
	mu sync.Mutex

	owner       ledger.Address
	address     ledger.Address
	store       settle.Committer
	policy      policy.Policy
	clock       func() time.Time
	idGenerator func() (string, error)
	sink        event.Sink

	entries   []Entry
	campaigns map[string]*campaign.Campaign
	byAddress map[ledger.Address]string
	// reserved holds ids whose campaigns are launching.
	reserved        map[string]struct{}
	platformBalance ledger.Amount
}

// New builds a factory.
func New(cfg Config) (*Factory, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if !cfg.Owner.Valid() {
		return nil, fmt.Errorf("factory owner is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = id.NewID
	}
	if cfg.Sink == nil {
		cfg.Sink = event.Discard
	}
	return &Factory{
		owner:       cfg.Owner,
		address:     cfg.Address,
		store:       cfg.Store,
		policy:      cfg.Policy,
		clock:       cfg.Clock,
		idGenerator: cfg.IDGenerator,
		sink:        cfg.Sink,
		campaigns:   make(map[string]*campaign.Campaign),
		byAddress:   make(map[ledger.Address]string),
		reserved:    make(map[string]struct{}),
	}, nil
}

// template returns the immutable collaborators every campaign shares.
func (f *Factory) template() campaign.Deps {
	return campaign.Deps{
		Store:  f.store,
		Policy: f.policy,
		Clock:  f.clock,
		Sink:   f.sink,
		Fees:   f,
	}
}

func (f *Factory) now() time.Time {
	return f.clock().UTC().Truncate(time.Millisecond)
}

// CreateInput describes a campaign to originate.
type CreateInput struct {
	Owner          ledger.Address
	GoalAmount     ledger.Amount
	Deadline       time.Time
	Category       string
	DetailsID      string
	InitialDeposit ledger.Amount
}

// Create originates a campaign owned by input.Owner. A non-zero initial
// deposit becomes the owner's first donation. The campaign id is reserved
// until the launch commits, and the campaign is reachable only after that.
func (f *Factory) Create(ctx context.Context, input CreateInput) (*campaign.Campaign, error) {
	campaignID, err := f.idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate campaign id: %w", err)
	}
	if err := f.reserve(campaignID); err != nil {
		return nil, err
	}
	c, err := f.launch(ctx, campaignID, input)
	if err != nil {
		f.release(campaignID)
		return nil, err
	}
	details := c.FundingDetails()
	f.register(Entry{
		CampaignID: details.ID,
		Address:    details.Address,
		Owner:      details.Owner,
		CreatedAt:  details.CreatedAt,
	}, c)
	return c, nil
}

func (f *Factory) launch(ctx context.Context, campaignID string, input CreateInput) (*campaign.Campaign, error) {
	c, err := campaign.New(campaign.Params{
		ID:         campaignID,
		Owner:      input.Owner,
		GoalAmount: input.GoalAmount,
		Deadline:   input.Deadline,
		Category:   input.Category,
		DetailsID:  input.DetailsID,
	}, f.template())
	if err != nil {
		return nil, err
	}
	if err := c.Launch(ctx, input.InitialDeposit); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *Factory) reserve(campaignID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.campaigns[campaignID]; exists {
		return fmt.Errorf("campaign %s already registered", campaignID)
	}
	if _, exists := f.reserved[campaignID]; exists {
		return fmt.Errorf("campaign %s is already launching", campaignID)
	}
	f.reserved[campaignID] = struct{}{}
	return nil
}

func (f *Factory) release(campaignID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reserved, campaignID)
}

func (f *Factory) register(entry Entry, c *campaign.Campaign) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reserved, entry.CampaignID)
	f.entries = append(f.entries, entry)
	f.campaigns[entry.CampaignID] = c
	f.byAddress[entry.Address] = entry.CampaignID
}

// FeeAddress implements campaign.FeeCollector.
func (f *Factory) FeeAddress() ledger.Address {
	return f.address
}

// ReceiveFee implements campaign.FeeCollector. Only registered campaigns
// may pay fees. The platform.fee_received event goes to commit so it lands
// in the campaign's batch, and the platform balance grows only if commit
// succeeds.
func (f *Factory) ReceiveFee(ctx context.Context, from ledger.Address, amount ledger.Amount, commit func(feeEvents ...event.Event) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	campaignID, ok := f.byAddress[from]
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeUnregisteredCampaign,
			"caller is not a registered campaign", map[string]string{"CampaignID": string(from)})
	}
	next, err := f.platformBalance.Add(amount)
	if err != nil {
		return err
	}
	var feeEvents []event.Event
	if !amount.IsZero() {
		evt, err := event.New(string(f.address), event.TypePlatformFeeReceived, string(from), f.now(), event.PlatformFeeReceivedPayload{
			CampaignID: campaignID,
			Amount:     amount,
			NewBalance: next,
		})
		if err != nil {
			return err
		}
		feeEvents = append(feeEvents, evt)
	}
	if commit != nil {
		if err := commit(feeEvents...); err != nil {
			return err
		}
	}
	f.platformBalance = next
	return nil
}

// WithdrawPlatformFees moves the whole platform balance to the given
// account (the owner when blank). Only the factory owner may call it.
func (f *Factory) WithdrawPlatformFees(ctx context.Context, caller, to ledger.Address) (ledger.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if caller != f.owner {
		return ledger.Amount{}, ErrNotFactoryOwner
	}
	if to == "" {
		to = caller
	}
	amount := f.platformBalance
	if amount.IsZero() {
		return ledger.Amount{}, nil
	}
	evt, err := event.New(string(f.address), event.TypePlatformFeesWithdrawn, string(caller), f.now(), event.PlatformFeesWithdrawnPayload{
		To:     string(to),
		Amount: amount,
	})
	if err != nil {
		return ledger.Amount{}, err
	}
	stamped, err := f.store.Commit(ctx, settle.Batch{
		Transfers: []ledger.Transfer{{From: f.address, To: to, Amount: amount}},
		Events:    []event.Event{evt},
	})
	if err != nil {
		return ledger.Amount{}, fmt.Errorf("withdraw platform fees: %w", err)
	}
	f.platformBalance = ledger.Amount{}
	_ = f.sink.Record(context.WithoutCancel(ctx), stamped...)
	return amount, nil
}

// Owner returns the factory owner.
func (f *Factory) Owner() ledger.Address {
	return f.owner
}

// Policy returns the release policy shared by every campaign.
func (f *Factory) Policy() policy.Policy {
	return f.policy
}

// PlatformBalance returns the accumulated, unswept fees.
func (f *Factory) PlatformBalance() ledger.Amount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.platformBalance
}

// Campaign returns the campaign with the given id.
func (f *Factory) Campaign(campaignID string) (*campaign.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeCampaignNotFound,
			"campaign not found", map[string]string{"CampaignID": campaignID})
	}
	return c, nil
}

// Campaigns returns the registry in creation order.
func (f *Factory) Campaigns() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Entry(nil), f.entries...)
}

// CampaignsByOwner returns the registry entries owned by owner.
func (f *Factory) CampaignsByOwner(owner ledger.Address) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, entry := range f.entries {
		if entry.Owner == owner {
			out = append(out, entry)
		}
	}
	return out
}
