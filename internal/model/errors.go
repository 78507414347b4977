package model

import "fmt"

// AuthError means the provider rejected the credentials. It is not retried.
type AuthError struct{ Err error }

func (e *AuthError) Error() string { return fmt.Sprintf("model authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ProviderTimeoutError means the provider did not answer in time.
type ProviderTimeoutError struct{ Err error }

func (e *ProviderTimeoutError) Error() string { return fmt.Sprintf("model provider timed out: %v", e.Err) }
func (e *ProviderTimeoutError) Unwrap() error { return e.Err }

// ProviderError covers rate limits, server errors and connection failures.
type ProviderError struct{ Err error }

func (e *ProviderError) Error() string { return fmt.Sprintf("model provider error: %v", e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

// MalformedDecisionError means the model output could not be used as a decision.
type MalformedDecisionError struct{ Reason string }

func (e *MalformedDecisionError) Error() string { return "malformed model decision: " + e.Reason }

// ModelError is returned once a malformed decision survives the stricter retry.
type ModelError struct{ Err error }

func (e *ModelError) Error() string { return fmt.Sprintf("model error: %v", e.Err) }
func (e *ModelError) Unwrap() error { return e.Err }
