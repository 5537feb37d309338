package factory

import (
	"fmt"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/campaign"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
)

// Restore rebuilds the registry, every campaign and the platform balance
// from the journal. Events must be in journal order and the factory must
// be empty. Nothing is re-emitted and the ledger is not touched.
func (f *Factory) Restore(events []event.Event) error {
	f.mu.Lock()
	if len(f.entries) > 0 || !f.platformBalance.IsZero() {
		f.mu.Unlock()
		return fmt.Errorf("restore: factory is not empty")
	}
	f.mu.Unlock()

	var (
		order     []string
		byID      = map[string][]event.Event{}
		entries   = map[string]Entry{}
		platform  ledger.Amount
		factoryID = string(f.address)
	)
	for _, evt := range events {
		if evt.InstanceID == factoryID {
			next, err := foldPlatform(platform, evt)
			if err != nil {
				return err
			}
			platform = next
			continue
		}
		if evt.Type == event.TypeCampaignCreated {
			if _, exists := byID[evt.InstanceID]; exists {
				return fmt.Errorf("restore: campaign %s created twice", evt.InstanceID)
			}
			var payload event.CampaignCreatedPayload
			if err := evt.Decode(&payload); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			order = append(order, evt.InstanceID)
			entries[evt.InstanceID] = Entry{
				CampaignID: payload.CampaignID,
				Address:    ledger.Address(payload.Address),
				Owner:      ledger.Address(payload.Owner),
				CreatedAt:  evt.Timestamp,
			}
		} else if _, exists := byID[evt.InstanceID]; !exists {
			return fmt.Errorf("restore: %s (seq %d) for unknown campaign %s", evt.Type, evt.Seq, evt.InstanceID)
		}
		byID[evt.InstanceID] = append(byID[evt.InstanceID], evt)
	}

	restored := make(map[string]*campaign.Campaign, len(order))
	for _, campaignID := range order {
		c, err := campaign.Restore(f.template(), byID[campaignID])
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		restored[campaignID] = c
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, campaignID := range order {
		entry := entries[campaignID]
		f.entries = append(f.entries, entry)
		f.campaigns[campaignID] = restored[campaignID]
		f.byAddress[entry.Address] = campaignID
	}
	f.platformBalance = platform
	return nil
}

func foldPlatform(balance ledger.Amount, evt event.Event) (ledger.Amount, error) {
	switch evt.Type {
	case event.TypePlatformFeeReceived:
		var payload event.PlatformFeeReceivedPayload
		if err := evt.Decode(&payload); err != nil {
			return ledger.Amount{}, fmt.Errorf("restore: %w", err)
		}
		next, err := balance.Add(payload.Amount)
		if err != nil {
			return ledger.Amount{}, fmt.Errorf("restore: %w", err)
		}
		if next != payload.NewBalance {
			return ledger.Amount{}, fmt.Errorf("restore: platform balance %s, seq %d says %s", next, evt.Seq, payload.NewBalance)
		}
		return next, nil
	case event.TypePlatformFeesWithdrawn:
		var payload event.PlatformFeesWithdrawnPayload
		if err := evt.Decode(&payload); err != nil {
			return ledger.Amount{}, fmt.Errorf("restore: %w", err)
		}
		next, err := balance.Sub(payload.Amount)
		if err != nil {
			return ledger.Amount{}, fmt.Errorf("restore: %w", err)
		}
		return next, nil
	default:
		return ledger.Amount{}, fmt.Errorf("restore: unexpected platform event %s", evt.Type)
	}
}
