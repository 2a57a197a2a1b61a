package domain

import "errors"

// Not-found errors
var (
	ErrRequestNotFound = errors.New("onboarding request not found")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrTokenNotFound   = errors.New("setup token not found")
)

// Conflict errors
var (
	ErrActiveRequestExists  = errors.New("an active onboarding request already exists for this email")
	ErrRequestNotPending    = errors.New("request is not pending")
	ErrRequestNotResendable = errors.New("request is not in a resendable state")
	ErrStatusConflict       = errors.New("request status changed concurrently")
	ErrTenantCodeTaken      = errors.New("institute code already taken")
	ErrUserAlreadyExists    = errors.New("user already exists for this external id")
)

// Token errors
var (
	ErrTokenExpired     = errors.New("setup token expired")
	ErrTokenAlreadyUsed = errors.New("setup token already used or request is not awaiting setup")
)

// Downstream errors
var (
	ErrNotificationFailed = errors.New("notification delivery failed")
)
