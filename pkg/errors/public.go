package errors

import "github.com/angelmondragon/slotbook-backend/pkg/types"

// Public renders err as the client-facing payload and its HTTP status.
// Untyped errors come out as INTERNAL_ERROR without their text.
func Public(err error, requestID string) (int, types.APIError) {
	typed := As(err)
	if typed == nil {
		typed = Wrap(CodeInternal, err, "")
	}
	m := MetadataFor(typed.code)

	out := types.APIError{
		Code:      string(typed.code),
		Message:   m.PublicMessage,
		Retryable: m.Retryable,
		RequestID: requestID,
	}
	if m.MessageExposed && typed.message != "" {
		out.Message = typed.message
	}
	if m.DetailsAllowed {
		out.Details = typed.details
	}
	return m.HTTPStatus, out
}
