package ecoline

import "errors"

// expired sessions manifest as pages missing the authenticated marker,
// not as clean error codes
var ErrUnauthenticated = errors.New("response is missing the authenticated session marker")

var ErrEmptyBasket = errors.New("checkout requires a non-empty basket")

// AuthError means no valid session could be established at all.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "ecoline auth: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransportError covers network/HTTP level failures. For checkout it
// means "outcome unknown", the order may already exist server-side.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "ecoline transport: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ExtractionError means a response arrived but did not have the expected
// shape. It is distinct from an absent optional element, which extraction
// functions report as a plain boolean.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return "ecoline extraction: " + e.Op + ": " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
