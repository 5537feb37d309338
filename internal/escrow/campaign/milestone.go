package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
)

// CreateMilestone opens the next tranche request.
func (c *Campaign) CreateMilestone(ctx context.Context, caller ledger.Address, contentRef string) (Milestone, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.state.Owner {
		return Milestone{}, ErrNotCampaignOwner
	}
	if _, ok := c.state.Pending(); ok {
		return Milestone{}, ErrPendingMilestoneExists
	}

	now := c.now()
	evt, err := event.New(c.state.ID, event.TypeMilestoneCreated, string(caller), now, event.MilestoneCreatedPayload{
		Owner:       string(caller),
		MilestoneID: uint64(len(c.state.Milestones) + 1),
		CreatedAt:   now,
		ContentRef:  strings.TrimSpace(contentRef),
	})
	if err != nil {
		return Milestone{}, err
	}
	stamped, err := c.commit(ctx, nil, evt)
	if err != nil {
		return Milestone{}, err
	}
	c.emit(ctx, stamped...)

	milestone, _ := c.state.Pending()
	return milestone.clone(), nil
}

// WithdrawalResult tells callers whether funds were released or retained.
type WithdrawalResult struct {
	MilestoneID uint64
	// Status is StatusWithdrawn on release and StatusRejected otherwise.
	Status      Status
	OwnerAmount ledger.Amount
	FeeAmount   ledger.Amount
	// Balance is the campaign balance after the call.
	Balance ledger.Amount
}

// Released reports whether the tranche was paid out.
func (r WithdrawalResult) Released() bool {
	return r.Status == StatusWithdrawn
}

// MaturesAt returns when the pending milestone becomes withdrawable.
func (c *Campaign) MaturesAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	milestone, ok := c.state.Pending()
	if !ok {
		return time.Time{}, false
	}
	return milestone.CreatedAt.Add(c.releaseDelay()), true
}

// releaseDelay is the first-tranche delay until a tranche has been
// released, then the per-tranche delay.
func (c *Campaign) releaseDelay() time.Duration {
	if c.state.WithdrawnCount == 0 {
		return c.deps.Policy.FirstTrancheDelay
	}
	return c.deps.Policy.TrancheDelay
}

// decide returns the release decision for the pending milestone. The
// first tranche is time-gated only; later ones need a strict weighted
// majority.
func (c *Campaign) decide(milestone *Milestone) Status {
	if c.state.WithdrawnCount == 0 {
		return StatusApproved
	}
	if milestone.VotesFor.Cmp(milestone.VotesAgainst) > 0 {
		return StatusApproved
	}
	return StatusRejected
}

// WithdrawMilestone resolves the pending milestone once it matures. An
// approved milestone releases a tranche of the balance to the owner and
// the platform fee to the factory in one batch with the withdrawal and
// fee events. A rejected
// milestone is not an error: it moves no funds and reports
// StatusRejected.
func (c *Campaign) WithdrawMilestone(ctx context.Context, caller ledger.Address) (WithdrawalResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.state.Owner {
		return WithdrawalResult{}, ErrNotCampaignOwner
	}
	milestone, ok := c.state.Pending()
	if !ok {
		return WithdrawalResult{}, ErrNoPendingMilestone
	}
	now := c.now()
	maturesAt := milestone.CreatedAt.Add(c.releaseDelay())
	if now.Before(maturesAt) {
		return WithdrawalResult{}, apperrors.WithMetadata(apperrors.CodeMilestoneNotMature,
			"milestone is not mature", map[string]string{"MaturesAt": maturesAt.Format(time.RFC3339)})
	}

	if c.decide(milestone) == StatusRejected {
		return c.reject(ctx, milestone, now)
	}

	gross := c.state.Balance.MulBps(c.deps.Policy.TrancheBps)
	fee := gross.MulBps(c.deps.Policy.FeeBps)
	ownerAmount, err := gross.Sub(fee)
	if err != nil {
		return WithdrawalResult{}, err
	}
	evt, err := event.New(c.state.ID, event.TypeMilestoneWithdrawn, string(caller), now, event.MilestoneWithdrawnPayload{
		MilestoneID: milestone.ID,
		OwnerAmount: ownerAmount,
		FeeAmount:   fee,
	})
	if err != nil {
		return WithdrawalResult{}, err
	}

	transfers := []ledger.Transfer{
		{From: c.state.Address, To: c.state.Owner, Amount: ownerAmount},
		{From: c.state.Address, To: c.deps.Fees.FeeAddress(), Amount: fee},
	}
	id := milestone.ID
	var stamped []event.Event
	commit := func(feeEvents ...event.Event) error {
		var err error
		stamped, err = c.commit(ctx, transfers, append([]event.Event{evt}, feeEvents...)...)
		return err
	}
	if err := c.deps.Fees.ReceiveFee(ctx, c.state.Address, fee, commit); err != nil {
		return WithdrawalResult{}, fmt.Errorf("withdraw milestone %d: %w", id, err)
	}
	c.emit(ctx, stamped...)

	return WithdrawalResult{
		MilestoneID: id,
		Status:      StatusWithdrawn,
		OwnerAmount: ownerAmount,
		FeeAmount:   fee,
		Balance:     c.state.Balance,
	}, nil
}

func (c *Campaign) reject(ctx context.Context, milestone *Milestone, now time.Time) (WithdrawalResult, error) {
	evt, err := event.New(c.state.ID, event.TypeMilestoneRejected, string(c.state.Owner), now, event.MilestoneRejectedPayload{
		MilestoneID:  milestone.ID,
		VotesFor:     milestone.VotesFor,
		VotesAgainst: milestone.VotesAgainst,
	})
	if err != nil {
		return WithdrawalResult{}, err
	}
	id := milestone.ID
	stamped, err := c.commit(ctx, nil, evt)
	if err != nil {
		return WithdrawalResult{}, err
	}
	c.emit(ctx, stamped...)
	return WithdrawalResult{
		MilestoneID: id,
		Status:      StatusRejected,
		Balance:     c.state.Balance,
	}, nil
}
