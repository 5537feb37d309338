package factory

import apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"

var (
	// ErrUnregisteredCampaign indicates a fee from an address the factory did not create.
	ErrUnregisteredCampaign = apperrors.New(apperrors.CodeUnregisteredCampaign, "caller is not a registered campaign")
	// ErrNotFactoryOwner indicates a non-owner attempted to sweep platform fees.
	ErrNotFactoryOwner = apperrors.New(apperrors.CodeNotFactoryOwner, "caller is not the factory owner")
	// ErrCampaignNotFound indicates an unknown campaign id.
	ErrCampaignNotFound = apperrors.New(apperrors.CodeCampaignNotFound, "campaign not found")
)
