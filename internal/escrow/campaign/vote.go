package campaign

import (
	"context"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
)

// VoteOnMilestone records the caller's weighted vote on the pending
// milestone. The weight is the caller's cumulative donation now; later
// donations or refunds do not change it.
func (c *Campaign) VoteOnMilestone(ctx context.Context, caller ledger.Address, approve bool) (Vote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	milestone, ok := c.state.Pending()
	if !ok {
		return Vote{}, ErrNoPendingMilestone
	}
	weight := c.state.Donors[caller]
	if weight.IsZero() {
		return Vote{}, ErrNotADonor
	}
	if milestone.HasVoted(caller) {
		return Vote{}, ErrAlreadyVoted
	}
	tally := milestone.VotesAgainst
	if approve {
		tally = milestone.VotesFor
	}
	if _, err := tally.Add(weight); err != nil {
		return Vote{}, err
	}

	now := c.now()
	evt, err := event.New(c.state.ID, event.TypeMilestoneVoted, string(caller), now, event.MilestoneVotedPayload{
		Voter:       string(caller),
		InstanceID:  c.state.ID,
		MilestoneID: milestone.ID,
		Approve:     approve,
		Weight:      weight,
		CastAt:      now,
	})
	if err != nil {
		return Vote{}, err
	}
	stamped, err := c.commit(ctx, nil, evt)
	if err != nil {
		return Vote{}, err
	}
	c.emit(ctx, stamped...)

	return Vote{Voter: caller, Approve: approve, Weight: weight, CastAt: now}, nil
}
