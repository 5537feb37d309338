package escrow

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/campaign"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/factory"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

func invalidField(field, message string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidRequest, field+" "+message, map[string]string{"Field": field})
}

func stringField(in *structpb.Struct, field string) string {
	value, ok := in.GetFields()[field]
	if !ok {
		return ""
	}
	return strings.TrimSpace(value.GetStringValue())
}

func requiredString(in *structpb.Struct, field string) (string, error) {
	value := stringField(in, field)
	if value == "" {
		return "", invalidField(field, "is required")
	}
	return value, nil
}

// amountField accepts a decimal string of up to 256 bits or an integral
// JSON number no larger than 2^53.
func amountField(in *structpb.Struct, field string) (ledger.Amount, error) {
	value, ok := in.GetFields()[field]
	if !ok {
		return ledger.Amount{}, nil
	}
	switch kind := value.GetKind().(type) {
	case *structpb.Value_StringValue:
		raw := strings.TrimSpace(kind.StringValue)
		if raw == "" {
			return ledger.Amount{}, nil
		}
		parsed, err := ledger.ParseAmount(raw)
		if errors.Is(err, ledger.ErrAmountOverflow) {
			return ledger.Amount{}, invalidField(field, "exceeds 256 bits")
		}
		if err != nil {
			return ledger.Amount{}, invalidField(field, "must be a non-negative integer")
		}
		return parsed, nil
	case *structpb.Value_NumberValue:
		number := kind.NumberValue
		if number < 0 || number != math.Trunc(number) || number > 1<<53 {
			return ledger.Amount{}, invalidField(field, "must be a non-negative integer")
		}
		return ledger.NewAmount(uint64(number)), nil
	default:
		return ledger.Amount{}, invalidField(field, "must be a string or number")
	}
}

func boolField(in *structpb.Struct, field string) (bool, error) {
	value, ok := in.GetFields()[field]
	if !ok {
		return false, invalidField(field, "is required")
	}
	kind, ok := value.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, invalidField(field, "must be a boolean")
	}
	return kind.BoolValue, nil
}

func timeField(in *structpb.Struct, field string) (time.Time, error) {
	raw, err := requiredString(in, field)
	if err != nil {
		return time.Time{}, err
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, invalidField(field, "must be an RFC 3339 timestamp")
	}
	return parsed.UTC(), nil
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

func detailsValue(details campaign.FundingDetails) map[string]any {
	return map[string]any{
		"campaign_id":      details.ID,
		"address":          string(details.Address),
		"owner":            string(details.Owner),
		"deadline":         formatTime(details.Deadline),
		"goal_amount":      formatAmount(details.GoalAmount),
		"category":         details.Category,
		"details_id":       details.DetailsID,
		"balance":          formatAmount(details.Balance),
		"total_donated":    formatAmount(details.TotalDonated),
		"net_donated":      formatAmount(details.NetDonated),
		"retained_penalty": formatAmount(details.RetainedPenalty),
		"created_at":       formatTime(details.CreatedAt),
		"milestone_count":  float64(details.MilestoneCount),
	}
}

func milestoneValue(m campaign.Milestone) map[string]any {
	votes := make([]any, 0, len(m.Votes))
	for _, vote := range m.Votes {
		votes = append(votes, voteValue(vote))
	}
	return map[string]any{
		"milestone_id":  float64(m.ID),
		"content_ref":   m.ContentRef,
		"created_at":    formatTime(m.CreatedAt),
		"status":        string(m.Status),
		"votes_for":     formatAmount(m.VotesFor),
		"votes_against": formatAmount(m.VotesAgainst),
		"votes":         votes,
		"resolved_at":   formatTime(m.ResolvedAt),
		"owner_amount":  formatAmount(m.OwnerAmount),
		"fee_amount":    formatAmount(m.FeeAmount),
	}
}

func voteValue(vote campaign.Vote) map[string]any {
	return map[string]any{
		"voter":   string(vote.Voter),
		"approve": vote.Approve,
		"weight":  formatAmount(vote.Weight),
		"cast_at": formatTime(vote.CastAt),
	}
}

func entryValue(entry factory.Entry) map[string]any {
	return map[string]any{
		"campaign_id": entry.CampaignID,
		"address":     string(entry.Address),
		"owner":       string(entry.Owner),
		"created_at":  formatTime(entry.CreatedAt),
	}
}
