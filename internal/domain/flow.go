package domain

// FlowState is the server-tracked stage of the verify-then-chat interaction.
// It only advances forward, except that a new check-email call resets the
// session back to StateAwaitingOTP.
type FlowState string

const (
	// StateUnauthenticated is the initial state of a fresh session.
	StateUnauthenticated FlowState = "unauthenticated"
	// StateAwaitingOTP means an OTP has been issued and not yet verified.
	StateAwaitingOTP FlowState = "awaiting_otp"
	// StateAwaitingDomain means the OTP was verified and the session is
	// waiting for the first domain input.
	StateAwaitingDomain FlowState = "awaiting_domain_input"
	// StateDomainSuggested means at least one suggestion round completed.
	StateDomainSuggested FlowState = "domain_suggested"
	// StateChatting means the session moved on to free-form chat.
	StateChatting FlowState = "chatting"
)
