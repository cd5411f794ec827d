package errors

import "net/http"

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeStateConflict   Code = "STATE_CONFLICT"
	CodeSlotFull        Code = "SLOT_FULL"
	CodeSlotClosed      Code = "SLOT_CLOSED"
	CodeAlreadyPaid     Code = "ALREADY_PAID"
	CodeAlreadyCanceled Code = "ALREADY_CANCELED"
	CodeProductNotFound Code = "PRODUCT_NOT_FOUND"
	CodeStoreConflict   Code = "STORE_CONFLICT"
	CodeIdempotency     Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit       Code = "RATE_LIMITED"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeDependency      Code = "DEPENDENCY_ERROR"
)

// Metadata is the wire policy for a code. With MessageExposed the caller's
// message replaces PublicMessage; codes whose errors may carry driver or
// dependency text keep the generic one.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	MessageExposed bool
}

type policy func(*Metadata)

var (
	exposeMessage policy = func(m *Metadata) { m.MessageExposed = true }
	withDetails   policy = func(m *Metadata) { m.DetailsAllowed = true }
	retryable     policy = func(m *Metadata) { m.Retryable = true }
)

func meta(status int, public string, opts ...policy) Metadata {
	m := Metadata{HTTPStatus: status, PublicMessage: public}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:   meta(http.StatusBadRequest, "validation failed", exposeMessage, withDetails),
	CodeUnauthorized: meta(http.StatusUnauthorized, "authentication required", exposeMessage),
	// every guest credential failure reads the same
	CodeUnauthenticated: meta(http.StatusUnauthorized, "invalid session"),
	CodeForbidden:       meta(http.StatusForbidden, "access denied", exposeMessage),
	CodeNotFound:        meta(http.StatusNotFound, "resource not found", exposeMessage),
	CodeConflict:        meta(http.StatusConflict, "conflict detected", exposeMessage, withDetails),
	CodeStateConflict:   meta(http.StatusUnprocessableEntity, "state transition disallowed", exposeMessage, withDetails),

	CodeSlotFull:        meta(http.StatusConflict, "delivery slot is full", exposeMessage, withDetails),
	CodeSlotClosed:      meta(http.StatusConflict, "delivery slot is closed", exposeMessage, withDetails),
	CodeAlreadyPaid:     meta(http.StatusConflict, "order already paid", exposeMessage),
	CodeAlreadyCanceled: meta(http.StatusConflict, "order already canceled", exposeMessage),
	CodeProductNotFound: meta(http.StatusUnprocessableEntity, "product not found", exposeMessage, withDetails),
	CodeIdempotency:     meta(http.StatusConflict, "idempotency key reused", exposeMessage, withDetails),

	// lost lock or serialization races on every attempt; repeating the
	// whole request is safe
	CodeStoreConflict: meta(http.StatusServiceUnavailable, "concurrent update, please retry", retryable),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "too many requests", exposeMessage, retryable),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", withDetails, retryable),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error"),
}

// MetadataFor falls back to INTERNAL_ERROR for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

func (c Code) HTTPStatus() int { return MetadataFor(c).HTTPStatus }

// Retryable reports whether clients may repeat the request unchanged.
func (c Code) Retryable() bool { return MetadataFor(c).Retryable }
