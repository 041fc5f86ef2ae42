package models

import "fmt"

// ValidationError reports malformed or inconsistent input. Never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("validation failed: %s", e.Msg)
}

// NotFoundError reports a missing order or settings record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError reports a duplicate id on create.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.ID)
}

// NotConfiguredError reports a missing external credential. Distinct from a
// transient failure: the operator has to act, retrying will not help.
type NotConfiguredError struct {
	Missing string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("not configured: %s", e.Missing)
}

// GatewayRequestError carries the payment gateway's raw error payload so
// callers can diagnose the rejection. The local order is untouched and the
// operation stays retryable.
type GatewayRequestError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("gateway %s failed: status=%d body=%s", e.Operation, e.StatusCode, e.Body)
}

func (e *GatewayRequestError) Unwrap() error { return e.Err }

// StorageUnavailableError reports that durable storage cannot accept writes
// in the current deployment mode, with remediation guidance.
type StorageUnavailableError struct {
	Reason string
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %s; configure DATABASE_URL to use the relational backend", e.Reason)
}
