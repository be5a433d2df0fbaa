package cart

import "strings"

const (
	guestName        = "guest"
	storageKeyPrefix = "cart-"
	// userEscape marks a user ID that would otherwise read as the guest
	userEscape = "~"
)

// Scope is the identity a cart belongs to: the guest or an authenticated user.
// The zero value is the guest scope.
type Scope struct {
	userID string
}

// GuestScope is the anonymous identity
var GuestScope = Scope{}

// UserScope returns the scope of an authenticated user. An empty ID is the guest.
func UserScope(userID string) Scope {
	return Scope{userID: strings.TrimSpace(userID)}
}

// ParseScope is the inverse of String
func ParseScope(s string) Scope {
	s = strings.TrimSpace(s)
	if s == guestName {
		return GuestScope
	}
	if rest, ok := strings.CutPrefix(s, userEscape); ok {
		return Scope{userID: rest}
	}
	return UserScope(s)
}

// IsGuest reports whether the scope is anonymous
func (s Scope) IsGuest() bool {
	return s.userID == ""
}

// IsUser reports whether the scope is an authenticated user
func (s Scope) IsUser() bool {
	return s.userID != ""
}

// UserID returns the authenticated user's ID, empty for the guest
func (s Scope) UserID() string {
	return s.userID
}

// StorageKey names the scope's persistence partition: "cart-guest" or
// "cart-<userId>". A user named "guest" gets "cart-~guest", so the guest and
// user partitions never share a key.
func (s Scope) StorageKey() string {
	return storageKeyPrefix + s.String()
}

// String is "guest" or the user ID. User IDs equal to "guest" or starting
// with "~" are prefixed with "~".
func (s Scope) String() string {
	if s.IsGuest() {
		return guestName
	}
	if s.userID == guestName || strings.HasPrefix(s.userID, userEscape) {
		return userEscape + s.userID
	}
	return s.userID
}
