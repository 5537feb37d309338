package campaign

import (
	"fmt"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
)

// Fold applies an event to campaign state. Operations fold the events they
// emit, and restore folds the journal, so both paths share one set of rules.
// Validation happens before any field changes.
func Fold(state *State, evt event.Event) error {
	if evt.Type != event.TypeCampaignCreated && !state.Created {
		return fmt.Errorf("fold %s: campaign not created", evt.Type)
	}
	if state.Created && evt.InstanceID != state.ID {
		return fmt.Errorf("fold %s: event belongs to %q, not %q", evt.Type, evt.InstanceID, state.ID)
	}

	switch evt.Type {
	case event.TypeCampaignCreated:
		return foldCreated(state, evt)
	case event.TypeDonationReceived:
		return foldDonation(state, evt)
	case event.TypeDonationRefunded:
		return foldRefund(state, evt)
	case event.TypePenaltyClaimed:
		return foldPenaltyClaimed(state, evt)
	case event.TypeMilestoneCreated:
		return foldMilestoneCreated(state, evt)
	case event.TypeMilestoneVoted:
		return foldVote(state, evt)
	case event.TypeMilestoneWithdrawn:
		return foldWithdrawn(state, evt)
	case event.TypeMilestoneRejected:
		return foldRejected(state, evt)
	default:
		return fmt.Errorf("fold: unexpected event type %q", evt.Type)
	}
}

func foldCreated(state *State, evt event.Event) error {
	if state.Created {
		return fmt.Errorf("fold %s: campaign already created", evt.Type)
	}
	var payload event.CampaignCreatedPayload
	if err := evt.Decode(&payload); err != nil {
		return err
	}
	if payload.CampaignID != evt.InstanceID {
		return fmt.Errorf("fold %s: payload id %q does not match instance %q", evt.Type, payload.CampaignID, evt.InstanceID)
	}
	*state = State{
		Created:    true,
		ID:         payload.CampaignID,
		Address:    ledger.Address(payload.Address),
		Owner:      ledger.Address(payload.Owner),
		GoalAmount: payload.GoalAmount,
		Deadline:   payload.Deadline,
		Category:   payload.Category,
		DetailsID:  payload.DetailsID,
		CreatedAt:  evt.Timestamp,
		Donors:     map[ledger.Address]ledger.Amount{},
	}
	return nil
}

func foldDonation(state *State, evt event.Event) error {
	var payload event.DonationReceivedPayload
	if err := evt.Decode(&payload); err != nil {
		return err
	}
	amount := payload.Amount
	donor := ledger.Address(payload.Donor)
	donated, err := state.Donors[donor].Add(amount)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	total, err := state.TotalDonated.Add(amount)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	balance, err := state.Balance.Add(amount)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	if balance != payload.NewBalance {
		return fmt.Errorf("fold %s: balance %s, event says %s", evt.Type, balance, payload.NewBalance)
	}
	state.Donors[donor] = donated
	state.TotalDonated = total
	state.Balance = balance
	return nil
}

func foldRefund(state *State, evt event.Event) error {
	var payload event.DonationRefundedPayload
	if err := evt.Decode(&payload); err != nil {
		return err
	}
	donor := ledger.Address(payload.Donor)
	donation := payload.Donation
	refund := payload.RefundedAmount
	if state.Donors[donor] != donation {
		return fmt.Errorf("fold %s: donor %s holds %s, event refunds %s", evt.Type, donor, state.Donors[donor], donation)
	}
	penalty, err := donation.Sub(refund)
	if err != nil {
		return fmt.Errorf("fold %s: refund exceeds donation: %w", evt.Type, err)
	}
	balance, err := state.Balance.Sub(donation)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	refundPaid, err := state.RefundPaid.Add(refund)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	refunded, err := state.RefundedPrincipal.Add(donation)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	retained, err := state.RetainedPenalty.Add(penalty)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	delete(state.Donors, donor)
	state.Balance = balance
	state.RefundPaid = refundPaid
	state.RefundedPrincipal = refunded
	state.RetainedPenalty = retained
	return nil
}

func foldPenaltyClaimed(state *State, evt event.Event) error {
	var payload event.PenaltyClaimedPayload
	if err := evt.Decode(&payload); err != nil {
		return err
	}
	if ledger.Address(payload.Owner) != state.Owner {
		return fmt.Errorf("fold %s: %w", evt.Type, ErrNotCampaignOwner)
	}
	retained, err := state.RetainedPenalty.Sub(payload.Amount)
	if err != nil {
		return fmt.Errorf("fold %s: claim exceeds retained penalty: %w", evt.Type, err)
	}
	claimed, err := state.PenaltyClaimed.Add(payload.Amount)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	state.RetainedPenalty = retained
	state.PenaltyClaimed = claimed
	return nil
}

func foldMilestoneCreated(state *State, evt event.Event) error {
	var payload event.MilestoneCreatedPayload
	if err := evt.Decode(&payload); err != nil {
		return err
	}
	if _, ok := state.Pending(); ok {
		return fmt.Errorf("fold %s: %w", evt.Type, ErrPendingMilestoneExists)
	}
	if want := uint64(len(state.Milestones) + 1); payload.MilestoneID != want {
		return fmt.Errorf("fold %s: milestone id %d, want %d", evt.Type, payload.MilestoneID, want)
	}
	state.Milestones = append(state.Milestones, Milestone{
		ID:         payload.MilestoneID,
		ContentRef: payload.ContentRef,
		CreatedAt:  payload.CreatedAt,
		Status:     StatusPending,
		voters:     map[ledger.Address]struct{}{},
	})
	return nil
}

func pendingFor(state *State, evt event.Event, milestoneID uint64) (*Milestone, error) {
	milestone, ok := state.Pending()
	if !ok {
		return nil, fmt.Errorf("fold %s: %w", evt.Type, ErrNoPendingMilestone)
	}
	if milestone.ID != milestoneID {
		return nil, fmt.Errorf("fold %s: milestone %d is not pending", evt.Type, milestoneID)
	}
	return milestone, nil
}

func foldVote(state *State, evt event.Event) error {
	var payload event.MilestoneVotedPayload
	if err := evt.Decode(&payload); err != nil {
		return err
	}
	milestone, err := pendingFor(state, evt, payload.MilestoneID)
	if err != nil {
		return err
	}
	voter := ledger.Address(payload.Voter)
	if milestone.HasVoted(voter) {
		return fmt.Errorf("fold %s: %w", evt.Type, ErrAlreadyVoted)
	}
	weight := payload.Weight
	if payload.Approve {
		tally, err := milestone.VotesFor.Add(weight)
		if err != nil {
			return fmt.Errorf("fold %s: %w", evt.Type, err)
		}
		milestone.VotesFor = tally
	} else {
		tally, err := milestone.VotesAgainst.Add(weight)
		if err != nil {
			return fmt.Errorf("fold %s: %w", evt.Type, err)
		}
		milestone.VotesAgainst = tally
	}
	if milestone.voters == nil {
		milestone.voters = map[ledger.Address]struct{}{}
	}
	milestone.voters[voter] = struct{}{}
	milestone.Votes = append(milestone.Votes, Vote{
		Voter:   voter,
		Approve: payload.Approve,
		Weight:  weight,
		CastAt:  payload.CastAt,
	})
	return nil
}

func foldWithdrawn(state *State, evt event.Event) error {
	var payload event.MilestoneWithdrawnPayload
	if err := evt.Decode(&payload); err != nil {
		return err
	}
	milestone, err := pendingFor(state, evt, payload.MilestoneID)
	if err != nil {
		return err
	}
	gross, err := payload.OwnerAmount.Add(payload.FeeAmount)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	balance, err := state.Balance.Sub(gross)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	withdrawn, err := state.Withdrawn.Add(gross)
	if err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	state.Balance = balance
	state.Withdrawn = withdrawn
	state.WithdrawnCount++
	milestone.Status = StatusWithdrawn
	milestone.ResolvedAt = evt.Timestamp
	milestone.OwnerAmount = payload.OwnerAmount
	milestone.FeeAmount = payload.FeeAmount
	return nil
}

func foldRejected(state *State, evt event.Event) error {
	var payload event.MilestoneRejectedPayload
	if err := evt.Decode(&payload); err != nil {
		return err
	}
	milestone, err := pendingFor(state, evt, payload.MilestoneID)
	if err != nil {
		return err
	}
	milestone.Status = StatusRejected
	milestone.ResolvedAt = evt.Timestamp
	return nil
}
