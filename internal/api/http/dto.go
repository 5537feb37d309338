package http

import (
	"encoding/json"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/campaign"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/factory"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
)

// Amounts are decimal strings so JSON clients keep 256-bit wei precision.

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type entryDTO struct {
	CampaignID string `json:"campaign_id"`
	Address    string `json:"address"`
	Owner      string `json:"owner"`
	CreatedAt  string `json:"created_at"`
}

type campaignListResponse struct {
	Campaigns []entryDTO `json:"campaigns"`
}

type detailsDTO struct {
	CampaignID      string `json:"campaign_id"`
	Address         string `json:"address"`
	Owner           string `json:"owner"`
	Deadline        string `json:"deadline"`
	GoalAmount      string `json:"goal_amount"`
	Category        string `json:"category"`
	DetailsID       string `json:"details_id"`
	Balance         string `json:"balance"`
	TotalDonated    string `json:"total_donated"`
	NetDonated      string `json:"net_donated"`
	RetainedPenalty string `json:"retained_penalty"`
	CreatedAt       string `json:"created_at"`
	MilestoneCount  int    `json:"milestone_count"`
}

type voteDTO struct {
	Voter   string `json:"voter"`
	Approve bool   `json:"approve"`
	Weight  string `json:"weight"`
	CastAt  string `json:"cast_at"`
}

type milestoneDTO struct {
	MilestoneID  uint64    `json:"milestone_id"`
	ContentRef   string    `json:"content_ref,omitempty"`
	CreatedAt    string    `json:"created_at"`
	Status       string    `json:"status"`
	VotesFor     string    `json:"votes_for"`
	VotesAgainst string    `json:"votes_against"`
	Votes        []voteDTO `json:"votes"`
	ResolvedAt   string    `json:"resolved_at,omitempty"`
	OwnerAmount  string    `json:"owner_amount"`
	FeeAmount    string    `json:"fee_amount"`
}

type campaignResponse struct {
	Campaign         detailsDTO     `json:"campaign"`
	Milestones       []milestoneDTO `json:"milestones"`
	PendingMaturesAt string         `json:"pending_matures_at,omitempty"`
}

type donationResponse struct {
	CampaignID string `json:"campaign_id"`
	Donor      string `json:"donor"`
	Amount     string `json:"amount"`
}

type eventDTO struct {
	Seq       uint64          `json:"seq"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Hash      string          `json:"hash"`
	PrevHash  string          `json:"prev_hash,omitempty"`
}

type eventListResponse struct {
	Events    []eventDTO `json:"events"`
	NextAfter string     `json:"next_after,omitempty"`
}

func formatAmount(amount ledger.Amount) string {
	return amount.String()
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func newEntryDTO(entry factory.Entry) entryDTO {
	return entryDTO{
		CampaignID: entry.CampaignID,
		Address:    string(entry.Address),
		Owner:      string(entry.Owner),
		CreatedAt:  formatTime(entry.CreatedAt),
	}
}

func newDetailsDTO(details campaign.FundingDetails) detailsDTO {
	return detailsDTO{
		CampaignID:      details.ID,
		Address:         string(details.Address),
		Owner:           string(details.Owner),
		Deadline:        formatTime(details.Deadline),
		GoalAmount:      formatAmount(details.GoalAmount),
		Category:        details.Category,
		DetailsID:       details.DetailsID,
		Balance:         formatAmount(details.Balance),
		TotalDonated:    formatAmount(details.TotalDonated),
		NetDonated:      formatAmount(details.NetDonated),
		RetainedPenalty: formatAmount(details.RetainedPenalty),
		CreatedAt:       formatTime(details.CreatedAt),
		MilestoneCount:  details.MilestoneCount,
	}
}

func newMilestoneDTO(m campaign.Milestone) milestoneDTO {
	votes := make([]voteDTO, 0, len(m.Votes))
	for _, vote := range m.Votes {
		votes = append(votes, voteDTO{
			Voter:   string(vote.Voter),
			Approve: vote.Approve,
			Weight:  formatAmount(vote.Weight),
			CastAt:  formatTime(vote.CastAt),
		})
	}
	return milestoneDTO{
		MilestoneID:  uint64(m.ID),
		ContentRef:   m.ContentRef,
		CreatedAt:    formatTime(m.CreatedAt),
		Status:       string(m.Status),
		VotesFor:     formatAmount(m.VotesFor),
		VotesAgainst: formatAmount(m.VotesAgainst),
		Votes:        votes,
		ResolvedAt:   formatTime(m.ResolvedAt),
		OwnerAmount:  formatAmount(m.OwnerAmount),
		FeeAmount:    formatAmount(m.FeeAmount),
	}
}

func newEventDTO(evt event.Event) eventDTO {
	payload := json.RawMessage(evt.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return eventDTO{
		Seq:       evt.Seq,
		Type:      string(evt.Type),
		Actor:     evt.Actor,
		Timestamp: formatTime(evt.Timestamp),
		Payload:   payload,
		Hash:      evt.Hash,
		PrevHash:  evt.PrevHash,
	}
}
