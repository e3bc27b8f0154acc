package kvstore

// Storage keys shared with the collaborating UI layer. The exact names are a
// compatibility contract; do not rename.
const (
	KeyToken             = "token"
	KeyRefreshToken      = "refreshToken"
	KeyTokenExpiration   = "tokenExpiration"
	KeyRefreshExpiration = "refreshExpiration"
	KeyUser              = "user"
	KeyUserPermissions   = "userPermissions"
	KeyClaimedCustomers  = "claimedCustomers"
	KeySessionState      = "sessionState"
	KeyRememberMe        = "rememberMe"
)

// SessionKeys lists every key cleared atomically on logout.
var SessionKeys = []string{
	KeyToken,
	KeyRefreshToken,
	KeyTokenExpiration,
	KeyRefreshExpiration,
	KeyUser,
	KeyUserPermissions,
	KeyClaimedCustomers,
	KeySessionState,
	KeyRememberMe,
}
