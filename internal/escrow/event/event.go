// Package event defines the escrow event journal and its observers.
//
// Every committed state change produces one or more events. A Journal
// stamps them with a sequence number and a SHA-256 hash chain; Sinks
// observe the stamped events afterwards (publishers, metrics, indexers).
package event

import (
	"time"
)

// Type identifies the type of an escrow event.
type Type string

// Campaign events.
const (
	// TypeCampaignCreated records a campaign originated by the factory.
	TypeCampaignCreated Type = "campaign.created"
	// TypeDonationReceived records value committed by a donor.
	TypeDonationReceived Type = "donation.received"
	// TypeDonationRefunded records a donor reclaiming a donation.
	TypeDonationRefunded Type = "donation.refunded"
	// TypePenaltyClaimed records the owner collecting retained refund penalties.
	TypePenaltyClaimed Type = "penalty.claimed"
)

// Milestone events.
const (
	// TypeMilestoneCreated records the owner opening a tranche request.
	TypeMilestoneCreated Type = "milestone.created"
	// TypeMilestoneVoted records a weighted donor vote.
	TypeMilestoneVoted Type = "milestone.voted"
	// TypeMilestoneWithdrawn records a released tranche.
	TypeMilestoneWithdrawn Type = "milestone.withdrawn"
	// TypeMilestoneRejected records a matured milestone the vote turned down.
	TypeMilestoneRejected Type = "milestone.rejected"
)

// Platform events.
const (
	// TypePlatformFeeReceived records a fee forwarded by a campaign.
	TypePlatformFeeReceived Type = "platform.fee_received"
	// TypePlatformFeesWithdrawn records the factory owner sweeping fees.
	TypePlatformFeesWithdrawn Type = "platform.fees_withdrawn"
)

// Known reports whether t is one of the defined event types.
func (t Type) Known() bool {
	switch t {
	case TypeCampaignCreated, TypeDonationReceived, TypeDonationRefunded, TypePenaltyClaimed,
		TypeMilestoneCreated, TypeMilestoneVoted, TypeMilestoneWithdrawn, TypeMilestoneRejected,
		TypePlatformFeeReceived, TypePlatformFeesWithdrawn:
		return true
	}
	return false
}

// Event represents an immutable fact in the escrow journal.
type Event struct {
	// Seq is the journal-wide sequence number (starts at 1).
	// Assigned by the journal on append.
	Seq uint64
	// InstanceID is the campaign ID, or the factory address for platform events.
	InstanceID string
	// Type identifies the kind of event.
	Type Type
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Actor is the ledger address that caused the event.
	Actor string
	// PayloadJSON is the type-specific payload.
	PayloadJSON []byte
	// Hash links this event to PrevHash (SHA-256, hex).
	// Assigned by the journal on append.
	Hash string
	// PrevHash is the previous event's Hash (empty for the first event).
	PrevHash string
}
