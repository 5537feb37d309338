package escrow

import (
	"context"
	"fmt"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/factory"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/requestctx"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service implements EscrowServer on top of a factory.
type Service struct {
	factory *factory.Factory
	ledger  ledger.Ledger
	funder  ledger.Funder
}

// NewService builds a Service. funder backs Deposit and may be nil, which
// disables it.
func NewService(f *factory.Factory, l ledger.Ledger, funder ledger.Funder) *Service {
	return &Service{factory: f, ledger: l, funder: funder}
}

func caller(ctx context.Context) (ledger.Address, error) {
	addr := ledger.Address(requestctx.CallerFromContext(ctx))
	if !addr.Valid() {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "caller is required")
	}
	return addr, nil
}

func response(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

// CreateCampaign originates a campaign owned by the caller.
func (s *Service) CreateCampaign(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "create campaign request is required")
	}
	owner, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	goal, err := amountField(in, "goal_amount")
	if err != nil {
		return nil, err
	}
	deadline, err := timeField(in, "deadline")
	if err != nil {
		return nil, err
	}
	deposit, err := amountField(in, "initial_deposit")
	if err != nil {
		return nil, err
	}

	c, err := s.factory.Create(ctx, factory.CreateInput{
		Owner:          owner,
		GoalAmount:     goal,
		Deadline:       deadline,
		Category:       stringField(in, "category"),
		DetailsID:      stringField(in, "details_id"),
		InitialDeposit: deposit,
	})
	if err != nil {
		return nil, err
	}
	return response(map[string]any{"campaign": detailsValue(c.FundingDetails())})
}

// Donate moves funds from the caller into a campaign.
func (s *Service) Donate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	donor, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	campaignID, err := requiredString(in, "campaign_id")
	if err != nil {
		return nil, err
	}
	amount, err := amountField(in, "amount")
	if err != nil {
		return nil, err
	}
	c, err := s.factory.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	balance, err := c.Donate(ctx, donor, amount)
	if err != nil {
		return nil, err
	}
	return response(map[string]any{
		"campaign_id": campaignID,
		"donation":    formatAmount(c.DonationOf(donor)),
		"balance":     formatAmount(balance),
	})
}

// CreateMilestone opens a tranche request on the caller's campaign.
func (s *Service) CreateMilestone(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	owner, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	campaignID, err := requiredString(in, "campaign_id")
	if err != nil {
		return nil, err
	}
	c, err := s.factory.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	milestone, err := c.CreateMilestone(ctx, owner, stringField(in, "content_ref"))
	if err != nil {
		return nil, err
	}
	return response(map[string]any{"campaign_id": campaignID, "milestone": milestoneValue(milestone)})
}

// VoteOnMilestone casts the caller's weighted vote.
func (s *Service) VoteOnMilestone(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	voter, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	campaignID, err := requiredString(in, "campaign_id")
	if err != nil {
		return nil, err
	}
	approve, err := boolField(in, "approve")
	if err != nil {
		return nil, err
	}
	c, err := s.factory.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	vote, err := c.VoteOnMilestone(ctx, voter, approve)
	if err != nil {
		return nil, err
	}
	return response(map[string]any{"campaign_id": campaignID, "vote": voteValue(vote)})
}

// WithdrawMilestone resolves the pending milestone of the caller's campaign.
func (s *Service) WithdrawMilestone(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	owner, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	campaignID, err := requiredString(in, "campaign_id")
	if err != nil {
		return nil, err
	}
	c, err := s.factory.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	result, err := c.WithdrawMilestone(ctx, owner)
	if err != nil {
		return nil, err
	}
	return response(map[string]any{
		"campaign_id":  campaignID,
		"milestone_id": float64(result.MilestoneID),
		"status":       string(result.Status),
		"released":     result.Released(),
		"owner_amount": formatAmount(result.OwnerAmount),
		"fee_amount":   formatAmount(result.FeeAmount),
		"balance":      formatAmount(result.Balance),
	})
}

// RetrieveDonation refunds the caller's donation less the penalty.
func (s *Service) RetrieveDonation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	donor, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	campaignID, err := requiredString(in, "campaign_id")
	if err != nil {
		return nil, err
	}
	c, err := s.factory.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	result, err := c.RetrieveDonatedAmount(ctx, donor)
	if err != nil {
		return nil, err
	}
	return response(map[string]any{
		"campaign_id": campaignID,
		"donor":       string(result.Donor),
		"donation":    formatAmount(result.Donation),
		"refund":      formatAmount(result.Refund),
		"retained":    formatAmount(result.Retained),
		"balance":     formatAmount(result.Balance),
	})
}

// ClaimRetainedPenalty pays a campaign's retained refund penalties to its
// owner, who must be the caller.
func (s *Service) ClaimRetainedPenalty(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	owner, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	campaignID, err := requiredString(in, "campaign_id")
	if err != nil {
		return nil, err
	}
	c, err := s.factory.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	amount, err := c.ClaimRetainedPenalty(ctx, owner)
	if err != nil {
		return nil, err
	}
	return response(map[string]any{
		"campaign_id": campaignID,
		"amount":      formatAmount(amount),
		"balance":     formatAmount(c.Balance()),
	})
}

// GetFundingDetails returns the campaign read model and its milestones.
func (s *Service) GetFundingDetails(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	campaignID, err := requiredString(in, "campaign_id")
	if err != nil {
		return nil, err
	}
	c, err := s.factory.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	milestones := c.Milestones()
	values := make([]any, 0, len(milestones))
	for _, milestone := range milestones {
		values = append(values, milestoneValue(milestone))
	}
	return response(map[string]any{"campaign": detailsValue(c.FundingDetails()), "milestones": values})
}

// GetDonation returns the net donation of donor, defaulting to the caller.
func (s *Service) GetDonation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	campaignID, err := requiredString(in, "campaign_id")
	if err != nil {
		return nil, err
	}
	donor := ledger.Address(stringField(in, "donor"))
	if donor == "" {
		donor = ledger.Address(requestctx.CallerFromContext(ctx))
	}
	if !donor.Valid() {
		return nil, invalidField("donor", "is required")
	}
	c, err := s.factory.Campaign(campaignID)
	if err != nil {
		return nil, err
	}
	return response(map[string]any{
		"campaign_id": campaignID,
		"donor":       string(donor),
		"amount":      formatAmount(c.DonationOf(donor)),
	})
}

// ListCampaigns returns the registry, optionally filtered by owner.
func (s *Service) ListCampaigns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	entries := s.factory.Campaigns()
	if owner := stringField(in, "owner"); owner != "" {
		entries = s.factory.CampaignsByOwner(ledger.Address(owner))
	}
	values := make([]any, 0, len(entries))
	for _, entry := range entries {
		values = append(values, entryValue(entry))
	}
	return response(map[string]any{"campaigns": values})
}

// Deposit credits an account from outside the ledger. Only the factory
// owner may call it.
func (s *Service) Deposit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	operator, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if s.funder == nil {
		return nil, status.Error(codes.Unimplemented, "deposits are not enabled")
	}
	if operator != s.factory.Owner() {
		return nil, factory.ErrNotFactoryOwner
	}
	account, err := requiredString(in, "account")
	if err != nil {
		return nil, err
	}
	amount, err := amountField(in, "amount")
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, invalidField("amount", "must be positive")
	}
	if err := s.funder.Credit(ctx, ledger.Address(account), amount); err != nil {
		return nil, err
	}
	balance, err := s.ledger.BalanceOf(ctx, ledger.Address(account))
	if err != nil {
		return nil, err
	}
	return response(map[string]any{"account": account, "balance": formatAmount(balance)})
}

// WithdrawPlatformFees sweeps the platform balance for the factory owner.
func (s *Service) WithdrawPlatformFees(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	operator, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	to := ledger.Address(stringField(in, "to"))
	amount, err := s.factory.WithdrawPlatformFees(ctx, operator, to)
	if err != nil {
		return nil, err
	}
	if to == "" {
		to = operator
	}
	return response(map[string]any{"to": string(to), "amount": formatAmount(amount)})
}
