package domain

import "time"

// AuthToken is one row of the token whitelist. The entropy value is the
// unguessable identifier embedded in the encoded token (as the jti claim) and
// used to locate this row on every authenticated request. Expiry is always
// derived from the stored IssuedAt, never from token claims.
type AuthToken struct {
	ID       int64     `json:"id"`
	Entropy  int64     `json:"-"`
	MemberID int64     `json:"-"`
	IssuedAt time.Time `json:"issued_at"`
}

// NewAuthToken creates a whitelist row for the given member with the given
// entropy value, issued now.
func NewAuthToken(memberID, entropy int64) (*AuthToken, error) {
	token := &AuthToken{
		Entropy:  entropy,
		MemberID: memberID,
		IssuedAt: time.Now().UTC(),
	}

	if err := token.Validate(); err != nil {
		return nil, err
	}

	return token, nil
}

// Validate checks if the AuthToken has valid data.
func (t *AuthToken) Validate() error {
	if t.Entropy == 0 {
		return ErrEmptyEntropy
	}
	if t.MemberID == 0 {
		return ErrMissingMember
	}
	return nil
}

// ExpiresAt returns the expiry derived from the stored issuance time.
func (t *AuthToken) ExpiresAt(ttl time.Duration) time.Time {
	return t.IssuedAt.Add(ttl)
}

// IsExpired reports whether the token has passed its lifetime as of now.
func (t *AuthToken) IsExpired(ttl time.Duration, now time.Time) bool {
	return now.After(t.ExpiresAt(ttl))
}
