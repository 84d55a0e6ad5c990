package librus

import "fmt"

// Fatality is decided by the stage that fails, not by the error: a
// ErrProbeFailure never aborts a run, every other error does.
var (
	ErrMissingCredentials    = fmt.Errorf("LIBRUS_USERNAME and LIBRUS_PASSWORD must both be set")
	ErrConnectivity          = fmt.Errorf("portal unreachable")
	ErrTokenNotFound         = fmt.Errorf("csrf token not found on login page")
	ErrLoginRejected         = fmt.Errorf("login rejected")
	ErrAccountOrTokenMissing = fmt.Errorf("account or bearer token missing")
	ErrNoAccountsFound       = fmt.Errorf("%w: no accounts found", ErrAccountOrTokenMissing)
	ErrNoTokenInAccount      = fmt.Errorf("%w: no accessToken in account", ErrAccountOrTokenMissing)
	ErrProbeFailure          = fmt.Errorf("probe failed")
)
