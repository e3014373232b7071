package payment

import "errors"

var (
	// ErrMissingAuthorizationID means the client posted an authorization
	// payload without an authorization id. No state is touched.
	ErrMissingAuthorizationID = errors.New("authorizationID is missing")

	// ErrMissingOrderField means the submitted order data lacks a required
	// field. Wrapped with the field name.
	ErrMissingOrderField = errors.New("required order field is missing")
)
