// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Campaign engine errors
	CodeNotCampaignOwner       Code = "NOT_CAMPAIGN_OWNER"
	CodePendingMilestoneExists Code = "PENDING_MILESTONE_EXISTS"
	CodeNoPendingMilestone     Code = "NO_PENDING_MILESTONE"
	CodeMilestoneNotMature     Code = "MILESTONE_NOT_MATURE"
	CodeNoDonationOnRecord     Code = "NO_DONATION_ON_RECORD"
	CodeInvalidAmount          Code = "INVALID_AMOUNT"

	// Voting errors
	CodeNotADonor    Code = "NOT_A_DONOR"
	CodeAlreadyVoted Code = "ALREADY_VOTED"

	// Factory errors
	CodeInvalidGoalAmount    Code = "INVALID_GOAL_AMOUNT"
	CodeInvalidDeadline      Code = "INVALID_DEADLINE"
	CodeUnregisteredCampaign Code = "UNREGISTERED_CAMPAIGN"
	CodeNotFactoryOwner      Code = "NOT_FACTORY_OWNER"
	CodeCampaignNotFound     Code = "CAMPAIGN_NOT_FOUND"

	// Ledger errors
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeAmountOverflow    Code = "AMOUNT_OVERFLOW"
	CodeInvalidAddress    Code = "INVALID_ADDRESS"

	// Transport errors
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeInvalidRequest      Code = "INVALID_REQUEST"
	CodeIdempotencyConflict Code = "IDEMPOTENCY_CONFLICT"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidAmount,
		CodeInvalidGoalAmount,
		CodeInvalidDeadline,
		CodeInvalidAddress,
		CodeInvalidRequest:
		return codes.InvalidArgument

	// PermissionDenied - caller is known but not allowed
	case CodeNotCampaignOwner,
		CodeNotFactoryOwner,
		CodeNotADonor,
		CodeUnregisteredCampaign:
		return codes.PermissionDenied

	// FailedPrecondition - state doesn't allow operation
	case CodePendingMilestoneExists,
		CodeNoPendingMilestone,
		CodeMilestoneNotMature,
		CodeNoDonationOnRecord,
		CodeInsufficientFunds:
		return codes.FailedPrecondition

	// AlreadyExists / Aborted - conflicting writes
	case CodeAlreadyVoted:
		return codes.AlreadyExists
	case CodeIdempotencyConflict:
		return codes.Aborted

	case CodeAmountOverflow:
		return codes.OutOfRange

	case CodeCampaignNotFound:
		return codes.NotFound

	case CodeUnauthenticated:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}
