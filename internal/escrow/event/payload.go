package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
)

// CampaignCreatedPayload captures a newly originated campaign.
type CampaignCreatedPayload struct {
	CampaignID string        `json:"campaign_id"`
	Address    string        `json:"address"`
	Owner      string        `json:"owner"`
	GoalAmount ledger.Amount `json:"goal_amount"`
	Deadline   time.Time     `json:"deadline"`
	Category   string        `json:"category,omitempty"`
	DetailsID  string        `json:"details_id,omitempty"`
}

// DonationReceivedPayload captures a donation and the resulting balance.
type DonationReceivedPayload struct {
	Donor      string        `json:"donor"`
	Amount     ledger.Amount `json:"amount"`
	NewBalance ledger.Amount `json:"new_balance"`
}

// DonationRefundedPayload captures an early exit. Donation is the
// principal removed from the balance; RefundedAmount is what the donor got.
type DonationRefundedPayload struct {
	Donor          string        `json:"donor"`
	RefundedAmount ledger.Amount `json:"refunded_amount"`
	Donation       ledger.Amount `json:"donation"`
}

// PenaltyClaimedPayload captures the owner collecting retained refund
// penalties.
type PenaltyClaimedPayload struct {
	Owner  string        `json:"owner"`
	Amount ledger.Amount `json:"amount"`
}

// MilestoneCreatedPayload captures a new pending milestone.
type MilestoneCreatedPayload struct {
	Owner       string    `json:"owner"`
	MilestoneID uint64    `json:"milestone_id"`
	CreatedAt   time.Time `json:"created_at"`
	ContentRef  string    `json:"content_ref"`
}

// MilestoneVotedPayload captures one weighted vote.
type MilestoneVotedPayload struct {
	Voter       string        `json:"voter"`
	InstanceID  string        `json:"instance_id"`
	MilestoneID uint64        `json:"milestone_id"`
	Approve     bool          `json:"approve"`
	Weight      ledger.Amount `json:"weight"`
	CastAt      time.Time     `json:"cast_at"`
}

// MilestoneWithdrawnPayload captures a released tranche.
type MilestoneWithdrawnPayload struct {
	MilestoneID uint64        `json:"milestone_id"`
	OwnerAmount ledger.Amount `json:"owner_amount"`
	FeeAmount   ledger.Amount `json:"fee_amount"`
}

// MilestoneRejectedPayload captures a matured milestone without majority.
type MilestoneRejectedPayload struct {
	MilestoneID  uint64        `json:"milestone_id"`
	VotesFor     ledger.Amount `json:"votes_for"`
	VotesAgainst ledger.Amount `json:"votes_against"`
}

// PlatformFeeReceivedPayload captures a fee credited to the factory.
type PlatformFeeReceivedPayload struct {
	CampaignID string        `json:"campaign_id"`
	Amount     ledger.Amount `json:"amount"`
	NewBalance ledger.Amount `json:"new_balance"`
}

// PlatformFeesWithdrawnPayload captures a sweep of the platform balance.
type PlatformFeesWithdrawnPayload struct {
	To     string        `json:"to"`
	Amount ledger.Amount `json:"amount"`
}

// New builds an unstamped event with a JSON payload.
func New(instanceID string, typ Type, actor string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Event{
		InstanceID:  instanceID,
		Type:        typ,
		Timestamp:   at.UTC(),
		Actor:       actor,
		PayloadJSON: data,
	}, nil
}

// Decode unmarshals the event payload into target.
func (e Event) Decode(target any) error {
	if err := json.Unmarshal(e.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload (seq %d): %w", e.Type, e.Seq, err)
	}
	return nil
}
