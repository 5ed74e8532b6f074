package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindBusinessRule  Kind = "business_rule"
	KindInternal      Kind = "internal"
)

// Error is a classified domain failure. Two errors are the same (errors.Is)
// when their codes match, whatever their messages say.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	// ErrValidation reports malformed or missing input.
	ErrValidation = &Error{Kind: KindValidation, Code: "validation", Message: "invalid input"}
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = &Error{Kind: KindNotFound, Code: "not_found", Message: "not found"}
	// ErrAlreadyExists indicates a unique constraint was violated.
	ErrAlreadyExists = &Error{Kind: KindConflict, Code: "already_exists", Message: "already exists"}
	// ErrUnauthorized covers missing, expired or forged credentials.
	ErrUnauthorized = &Error{Kind: KindAuthorization, Code: "unauthorized", Message: "unauthorized"}

	ErrInvalidItem        = &Error{Kind: KindValidation, Code: "invalid_item", Message: "product is unknown or inactive"}
	ErrQuantityTooLow     = &Error{Kind: KindBusinessRule, Code: "quantity_too_low", Message: "quantity is below the product minimum"}
	ErrInvalidOption      = &Error{Kind: KindBusinessRule, Code: "invalid_option", Message: "option selection is not valid for this product"}
	ErrInvalidTargetDate  = &Error{Kind: KindBusinessRule, Code: "invalid_target_date", Message: "target date is not available"}
	ErrInvalidTransition  = &Error{Kind: KindBusinessRule, Code: "invalid_transition", Message: "status transition is not allowed"}
	ErrProductUnavailable = &Error{Kind: KindConflict, Code: "product_unavailable", Message: "a product in the basket is no longer available"}
	ErrPriceChanged       = &Error{Kind: KindConflict, Code: "price_changed", Message: "prices have changed, review the basket"}
	ErrBasketChanged      = &Error{Kind: KindConflict, Code: "basket_changed", Message: "basket changed while the order was being placed"}
	ErrDuplicateRequest   = &Error{Kind: KindConflict, Code: "duplicate_request", Message: "request with this idempotency key is already being processed"}

	// ErrVersionConflict is returned by stores when an optimistic write lost a race.
	ErrVersionConflict = &Error{Kind: KindConflict, Code: "version_conflict", Message: "concurrent modification"}
)

// Newf derives an error with the kind and code of base and a specific message.
func Newf(base *Error, format string, args ...interface{}) error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: fmt.Sprintf(format, args...), Err: base}
}

// KindOf reports the classification of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of a classified error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
