package campaign

import (
	"context"
	"fmt"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
)

// Donate moves amount from donor into the campaign. Over-funding and
// donations after the deadline are accepted. It returns the new balance.
func (c *Campaign) Donate(ctx context.Context, donor ledger.Address, amount ledger.Amount) (ledger.Amount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	evt, transfer, err := c.donation(donor, amount)
	if err != nil {
		return ledger.Amount{}, err
	}
	stamped, err := c.commit(ctx, []ledger.Transfer{transfer}, evt)
	if err != nil {
		return ledger.Amount{}, fmt.Errorf("donate: %w", err)
	}
	c.emit(ctx, stamped...)
	return c.state.Balance, nil
}

// donation validates a donation and builds its event and transfer.
func (c *Campaign) donation(donor ledger.Address, amount ledger.Amount) (event.Event, ledger.Transfer, error) {
	if amount.IsZero() {
		return event.Event{}, ledger.Transfer{}, ErrInvalidAmount
	}
	if !donor.Valid() {
		return event.Event{}, ledger.Transfer{}, ledger.ErrInvalidAddress
	}
	if _, err := c.state.Donors[donor].Add(amount); err != nil {
		return event.Event{}, ledger.Transfer{}, err
	}
	if _, err := c.state.TotalDonated.Add(amount); err != nil {
		return event.Event{}, ledger.Transfer{}, err
	}
	newBalance, err := c.state.Balance.Add(amount)
	if err != nil {
		return event.Event{}, ledger.Transfer{}, err
	}

	evt, err := event.New(c.state.ID, event.TypeDonationReceived, string(donor), c.now(), event.DonationReceivedPayload{
		Donor:      string(donor),
		Amount:     amount,
		NewBalance: newBalance,
	})
	if err != nil {
		return event.Event{}, ledger.Transfer{}, err
	}
	return evt, ledger.Transfer{From: donor, To: c.state.Address, Amount: amount}, nil
}

// RefundResult reports the outcome of an early exit.
type RefundResult struct {
	Donor ledger.Address
	// Donation is the principal removed from the campaign balance.
	Donation ledger.Amount
	// Refund is the amount paid back to the donor.
	Refund ledger.Amount
	// Retained is the penalty kept by the campaign.
	Retained ledger.Amount
	Balance  ledger.Amount
}

// RetrieveDonatedAmount pays the caller the refund share of their
// cumulative donation and removes the full donation from the balance.
// It is allowed whatever the milestone status. A vote the donor already
// cast keeps its weight.
func (c *Campaign) RetrieveDonatedAmount(ctx context.Context, caller ledger.Address) (RefundResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	donation := c.state.Donors[caller]
	if donation.IsZero() {
		return RefundResult{}, apperrors.WithMetadata(apperrors.CodeNoDonationOnRecord,
			"no donation on record", map[string]string{"Donor": string(caller)})
	}
	balance, err := c.state.Balance.Sub(donation)
	if err != nil {
		// Earlier tranches already released part of this donation.
		return RefundResult{}, apperrors.WithMetadata(apperrors.CodeInsufficientFunds,
			"campaign balance cannot cover the donation", map[string]string{"Account": string(c.state.Address)})
	}
	refund := donation.MulBps(c.deps.Policy.RefundBps)
	retained, err := donation.Sub(refund)
	if err != nil {
		return RefundResult{}, err
	}

	evt, err := event.New(c.state.ID, event.TypeDonationRefunded, string(caller), c.now(), event.DonationRefundedPayload{
		Donor:          string(caller),
		RefundedAmount: refund,
		Donation:       donation,
	})
	if err != nil {
		return RefundResult{}, err
	}
	stamped, err := c.commit(ctx, []ledger.Transfer{{From: c.state.Address, To: caller, Amount: refund}}, evt)
	if err != nil {
		return RefundResult{}, fmt.Errorf("refund: %w", err)
	}
	c.emit(ctx, stamped...)

	return RefundResult{
		Donor:    caller,
		Donation: donation,
		Refund:   refund,
		Retained: retained,
		Balance:  balance,
	}, nil
}

// ClaimRetainedPenalty pays the owner the refund penalties the campaign
// kept. They are not part of the tranche balance and carry no platform
// fee. With nothing retained it returns zero and records nothing.
func (c *Campaign) ClaimRetainedPenalty(ctx context.Context, caller ledger.Address) (ledger.Amount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.state.Owner {
		return ledger.Amount{}, ErrNotCampaignOwner
	}
	amount := c.state.RetainedPenalty
	if amount.IsZero() {
		return ledger.Amount{}, nil
	}
	evt, err := event.New(c.state.ID, event.TypePenaltyClaimed, string(caller), c.now(), event.PenaltyClaimedPayload{
		Owner:  string(caller),
		Amount: amount,
	})
	if err != nil {
		return ledger.Amount{}, err
	}
	stamped, err := c.commit(ctx, []ledger.Transfer{{From: c.state.Address, To: caller, Amount: amount}}, evt)
	if err != nil {
		return ledger.Amount{}, fmt.Errorf("claim retained penalty: %w", err)
	}
	c.emit(ctx, stamped...)
	return amount, nil
}
