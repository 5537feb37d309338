package campaign

import (
	"fmt"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
)

// Status is the lifecycle state of a milestone.
type Status string

const (
	// StatusPending accepts votes and awaits withdrawal.
	StatusPending Status = "pending"
	// StatusApproved is the release decision; the same call moves it on to withdrawn.
	StatusApproved Status = "approved"
	// StatusRejected is a matured milestone that lacked a weighted majority.
	StatusRejected Status = "rejected"
	// StatusWithdrawn is a released tranche.
	StatusWithdrawn Status = "withdrawn"
)

// Vote is one donor's weighted decision, fixed at cast time.
type Vote struct {
	Voter   ledger.Address
	Approve bool
	Weight  ledger.Amount
	CastAt  time.Time
}

// Milestone is a tranche request.
type Milestone struct {
	ID           uint64
	ContentRef   string
	CreatedAt    time.Time
	Status       Status
	VotesFor     ledger.Amount
	VotesAgainst ledger.Amount
	// Votes is the ordered audit trail of cast votes.
	Votes       []Vote
	ResolvedAt  time.Time
	OwnerAmount ledger.Amount
	FeeAmount   ledger.Amount

	voters map[ledger.Address]struct{}
}

// HasVoted reports whether addr already voted on this milestone.
func (m Milestone) HasVoted(addr ledger.Address) bool {
	if m.voters != nil {
		_, ok := m.voters[addr]
		return ok
	}
	for _, vote := range m.Votes {
		if vote.Voter == addr {
			return true
		}
	}
	return false
}

func (m Milestone) clone() Milestone {
	m.Votes = append([]Vote(nil), m.Votes...)
	if m.voters != nil {
		voters := make(map[ledger.Address]struct{}, len(m.voters))
		for addr := range m.voters {
			voters[addr] = struct{}{}
		}
		m.voters = voters
	}
	return m
}

// State is the campaign aggregate rebuilt by folding its events.
type State struct {
	Created    bool
	ID         string
	Address    ledger.Address
	Owner      ledger.Address
	GoalAmount ledger.Amount
	// Deadline is informational; donations are accepted after it passes.
	Deadline  time.Time
	Category  string
	DetailsID string
	CreatedAt time.Time

	// Balance is the spendable escrow: inflow minus withdrawals and
	// refunded principal.
	Balance ledger.Amount
	// TotalDonated is gross cumulative inflow and never decreases.
	TotalDonated      ledger.Amount
	RefundedPrincipal ledger.Amount
	RefundPaid        ledger.Amount
	// RetainedPenalty is refunded principal kept in the campaign account
	// and not yet claimed by the owner.
	RetainedPenalty ledger.Amount
	PenaltyClaimed  ledger.Amount
	// Withdrawn sums owner amounts and fees of released tranches.
	Withdrawn ledger.Amount

	Donors         map[ledger.Address]ledger.Amount
	Milestones     []Milestone
	WithdrawnCount int
}

// NetDonated is total inflow less the amounts paid back to donors.
func (s State) NetDonated() ledger.Amount {
	net, err := s.TotalDonated.Sub(s.RefundPaid)
	if err != nil {
		return ledger.Amount{}
	}
	return net
}

// Pending returns the pending milestone, if any. Only the newest
// milestone can be pending.
func (s *State) Pending() (*Milestone, bool) {
	if len(s.Milestones) == 0 {
		return nil, false
	}
	last := &s.Milestones[len(s.Milestones)-1]
	if last.Status != StatusPending {
		return nil, false
	}
	return last, true
}

// Clone returns a deep copy.
func (s State) Clone() State {
	donors := make(map[ledger.Address]ledger.Amount, len(s.Donors))
	for addr, amount := range s.Donors {
		donors[addr] = amount
	}
	s.Donors = donors
	milestones := make([]Milestone, len(s.Milestones))
	for i, m := range s.Milestones {
		milestones[i] = m.clone()
	}
	s.Milestones = milestones
	return s
}

// CheckInvariants verifies the accounting and milestone invariants.
func (s State) CheckInvariants() error {
	pending := 0
	withdrawn := 0
	for i, m := range s.Milestones {
		if m.ID != uint64(i+1) {
			return fmt.Errorf("milestone %d has id %d", i+1, m.ID)
		}
		switch m.Status {
		case StatusPending:
			pending++
		case StatusWithdrawn:
			withdrawn++
		}
		var votesFor, votesAgainst ledger.Amount
		for _, vote := range m.Votes {
			var err error
			if vote.Approve {
				votesFor, err = votesFor.Add(vote.Weight)
			} else {
				votesAgainst, err = votesAgainst.Add(vote.Weight)
			}
			if err != nil {
				return fmt.Errorf("milestone %d tally: %w", m.ID, err)
			}
		}
		if votesFor != m.VotesFor || votesAgainst != m.VotesAgainst {
			return fmt.Errorf("milestone %d tally does not match its votes", m.ID)
		}
	}
	if pending > 1 {
		return fmt.Errorf("%d milestones pending", pending)
	}
	if withdrawn != s.WithdrawnCount {
		return fmt.Errorf("withdrawn count %d, milestones say %d", s.WithdrawnCount, withdrawn)
	}

	outflow, err := s.RefundedPrincipal.Add(s.Withdrawn)
	if err != nil {
		return fmt.Errorf("outflow: %w", err)
	}
	accounted, err := s.Balance.Add(outflow)
	if err != nil {
		return fmt.Errorf("accounted: %w", err)
	}
	if accounted != s.TotalDonated {
		return fmt.Errorf("balance %s != donated %s - refunded principal %s - withdrawn %s",
			s.Balance, s.TotalDonated, s.RefundedPrincipal, s.Withdrawn)
	}
	penalty, err := s.RetainedPenalty.Add(s.PenaltyClaimed)
	if err == nil {
		penalty, err = penalty.Add(s.RefundPaid)
	}
	if err != nil || penalty != s.RefundedPrincipal {
		return fmt.Errorf("retained penalty %s + claimed %s + refund paid %s != refunded principal %s",
			s.RetainedPenalty, s.PenaltyClaimed, s.RefundPaid, s.RefundedPrincipal)
	}
	return nil
}

// FundingDetails is the read model exposed to clients.
type FundingDetails struct {
	ID              string
	Address         ledger.Address
	Owner           ledger.Address
	Deadline        time.Time
	GoalAmount      ledger.Amount
	Category        string
	DetailsID       string
	Balance         ledger.Amount
	TotalDonated    ledger.Amount
	NetDonated      ledger.Amount
	RetainedPenalty ledger.Amount
	CreatedAt       time.Time
	MilestoneCount  int
}

func (s State) fundingDetails() FundingDetails {
	return FundingDetails{
		ID:              s.ID,
		Address:         s.Address,
		Owner:           s.Owner,
		Deadline:        s.Deadline,
		GoalAmount:      s.GoalAmount,
		Category:        s.Category,
		DetailsID:       s.DetailsID,
		Balance:         s.Balance,
		TotalDonated:    s.TotalDonated,
		NetDonated:      s.NetDonated(),
		RetainedPenalty: s.RetainedPenalty,
		CreatedAt:       s.CreatedAt,
		MilestoneCount:  len(s.Milestones),
	}
}
