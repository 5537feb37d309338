package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors/i18n"
	"golang.org/x/text/language"
	"google.golang.org/grpc/codes"
)

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Locale    string `json:"locale,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError renders err with the status its gRPC mapping implies and a
// message localized from Accept-Language.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		log.Printf("http %s %s: request_id=%s: %v", r.Method, r.URL.Path, requestID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:      string(code),
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		})
		return
	}
	catalog := i18n.GetCatalog(requestLocale(r))
	writeJSON(w, httpStatus(code.GRPCCode()), errorResponse{
		Code:      string(code),
		Message:   catalog.Format(string(code), apperrors.GetMetadata(err)),
		Locale:    catalog.Locale(),
		RequestID: requestID,
	})
}

func requestLocale(r *http.Request) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return apperrors.DefaultLocale
	}
	return tags[0].String()
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
