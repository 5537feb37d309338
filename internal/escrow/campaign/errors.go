package campaign

import apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"

var (
	// ErrNotCampaignOwner indicates a non-owner attempted an owner operation.
	ErrNotCampaignOwner = apperrors.New(apperrors.CodeNotCampaignOwner, "caller is not the campaign owner")
	// ErrPendingMilestoneExists indicates a milestone is already awaiting withdrawal.
	ErrPendingMilestoneExists = apperrors.New(apperrors.CodePendingMilestoneExists, "a milestone is already pending")
	// ErrNoPendingMilestone indicates there is no milestone to vote on or withdraw.
	ErrNoPendingMilestone = apperrors.New(apperrors.CodeNoPendingMilestone, "no pending milestone")
	// ErrMilestoneNotMature indicates the release delay has not elapsed.
	ErrMilestoneNotMature = apperrors.New(apperrors.CodeMilestoneNotMature, "milestone is not mature")
	// ErrNoDonationOnRecord indicates the caller has nothing to reclaim.
	ErrNoDonationOnRecord = apperrors.New(apperrors.CodeNoDonationOnRecord, "no donation on record")
	// ErrNotADonor indicates a caller without a donation tried to vote.
	ErrNotADonor = apperrors.New(apperrors.CodeNotADonor, "caller is not a donor")
	// ErrAlreadyVoted indicates a second vote on the same milestone.
	ErrAlreadyVoted = apperrors.New(apperrors.CodeAlreadyVoted, "donor already voted on this milestone")
	// ErrInvalidAmount indicates a zero donation.
	ErrInvalidAmount = apperrors.New(apperrors.CodeInvalidAmount, "amount must be greater than zero")
	// ErrInvalidGoalAmount indicates a zero goal.
	ErrInvalidGoalAmount = apperrors.New(apperrors.CodeInvalidGoalAmount, "goal amount must be greater than zero")
	// ErrInvalidDeadline indicates a deadline that is not in the future.
	ErrInvalidDeadline = apperrors.New(apperrors.CodeInvalidDeadline, "deadline must be in the future")
)
