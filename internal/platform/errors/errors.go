package errors

import (
	stderrors "errors"
	"maps"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to every escrow status.
const Domain = "escrow.crowdfunding"

// FieldKey names the request field an invalid-argument error refers to.
const FieldKey = "Field"

// Error is an escrow failure carrying a stable code. Metadata feeds the
// localized message templates and is echoed in ErrorInfo.
type Error struct {
	Code     Code
	Message  string // operator-facing; never localized
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so codes work as sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// With returns a copy of e with metadata key set to value.
func (e *Error) With(key, value string) *Error {
	out := *e
	out.Metadata = make(map[string]string, len(e.Metadata)+1)
	maps.Copy(out.Metadata, e.Metadata)
	out.Metadata[key] = value
	return &out
}

// New returns an error with no metadata.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata returns an error whose metadata is a copy of metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: maps.Clone(metadata)}
}

// Wrap returns an error with cause reachable through errors.Is and As.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ToGRPCStatus builds the wire status for e. The status message stays the
// internal message; userMessage travels as a LocalizedMessage detail.
// Invalid-argument errors naming a Field also carry a BadRequest detail.
func (e *Error) ToGRPCStatus(locale string, userMessage string) error {
	grpcCode := e.Code.GRPCCode()
	base := status.New(grpcCode, e.Message)

	info := &errdetails.ErrorInfo{Reason: string(e.Code), Domain: Domain, Metadata: e.Metadata}
	localized := &errdetails.LocalizedMessage{Locale: locale, Message: userMessage}

	var (
		st  *status.Status
		err error
	)
	if field := e.Metadata[FieldKey]; grpcCode == codes.InvalidArgument && field != "" {
		st, err = base.WithDetails(info, localized, &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{Field: field, Description: userMessage}},
		})
	} else {
		st, err = base.WithDetails(info, localized)
	}
	if err != nil {
		return base.Err()
	}
	return st.Err()
}
