package domain

// OnboardingStatus enumerates the lifecycle states of an onboarding request.
type OnboardingStatus string

const (
	StatusPending       OnboardingStatus = "PENDING"
	StatusInitiated     OnboardingStatus = "INITIATED"
	StatusAwaitingClerk OnboardingStatus = "AWAITING_CLERK"
	StatusCompleted     OnboardingStatus = "COMPLETED"
	StatusRejected      OnboardingStatus = "REJECTED"
	StatusExpired       OnboardingStatus = "EXPIRED"
	StatusError         OnboardingStatus = "ERROR"
)

// TerminalStatuses is the terminal-closed set: once a request reaches one of
// these, only diagnostic fields may still change.
var TerminalStatuses = []OnboardingStatus{
	StatusRejected,
	StatusCompleted,
	StatusExpired,
	StatusError,
}

// IsTerminal reports whether the status belongs to the terminal-closed set.
func (s OnboardingStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusExpired, StatusError:
		return true
	}
	return false
}

// Valid reports whether s is a known onboarding status.
func (s OnboardingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInitiated, StatusAwaitingClerk,
		StatusCompleted, StatusRejected, StatusExpired, StatusError:
		return true
	}
	return false
}
