package domain

type RegistrationState string

const (
	StateIdle             RegistrationState = "idle"
	StateWalletConnecting RegistrationState = "wallet_connecting"
	StateWalletConnected  RegistrationState = "wallet_connected"
	StateSubmitting       RegistrationState = "submitting"
	StateConfirming       RegistrationState = "confirming"
	StateMirroring        RegistrationState = "mirroring"
	StateTokenGenerating  RegistrationState = "token_generating"
	StateDone             RegistrationState = "done"
	StateError            RegistrationState = "error"
)

// Terminal reports whether no further transition is possible.
func (s RegistrationState) Terminal() bool {
	return s == StateDone || s == StateError
}
