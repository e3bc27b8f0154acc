package session

import "errors"

var (
	// ErrInvalidToken: a token pair without an access token; never stored.
	ErrInvalidToken = errors.New("session: invalid token")
	// ErrInvalidCredentials: login rejected; surfaced to the user, local
	// state cleared.
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	// ErrNotLoggedIn: no stored token to resume from.
	ErrNotLoggedIn = errors.New("session: not logged in")
	// ErrNoRefreshToken: refresh requested with no refresh token stored.
	ErrNoRefreshToken = errors.New("session: no refresh token")
	// ErrRefreshTokenInvalid: the refresh token itself is expired; detected
	// locally before any network call.
	ErrRefreshTokenInvalid = errors.New("session: refresh token expired")
	// ErrRefreshExhausted: the attempt cap was hit; forces logout.
	ErrRefreshExhausted = errors.New("session: refresh attempts exhausted")
	// ErrRefreshBackoff: refresh requested before the backoff window for the
	// current attempt count elapsed. Recoverable; retry later.
	ErrRefreshBackoff = errors.New("session: refresh backoff in effect")
	// ErrTransientRefresh: network/timeout failure during refresh; the
	// session stays active and the caller may retry the triggering action.
	ErrTransientRefresh = errors.New("session: transient refresh error")
	// ErrSessionExpired: the backend no longer accepts this session; local
	// state has been cleared and the user must sign in again.
	ErrSessionExpired = errors.New("session: session expired")
	// ErrSessionExpiredIdle: the session exceeded the idle timeout.
	ErrSessionExpiredIdle = errors.New("session: session expired after inactivity")
)
