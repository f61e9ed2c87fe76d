package domain

import "time"

// Account is the billing/tenant unit for API access. An account may have any
// number of credentialed members (see AccountMember); records owned by an
// account are only visible to its members.
type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAccount creates a new active Account with the given name.
// Returns an error if validation fails.
func NewAccount(name string) (*Account, error) {
	account := &Account{
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	return account, nil
}

// Validate checks if the Account has valid data.
func (a *Account) Validate() error {
	if a.Name == "" {
		return ErrEmptyAccountName
	}
	return nil
}

// AccountMember is a concrete credentialed identity under an Account.
// Authentication happens at the member level: every issued token belongs to
// exactly one member.
type AccountMember struct {
	ID             int64     `json:"id"`
	AccountID      int64     `json:"account_id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"` // Never expose the password hash in JSON
	CreatedAt      time.Time `json:"created_at"`
}

// NewAccountMember creates a new AccountMember under the given account.
// The caller is responsible for hashing the password before constructing the
// member; plaintext passwords never live on this struct.
func NewAccountMember(accountID int64, username, hashedPassword string) (*AccountMember, error) {
	member := &AccountMember{
		AccountID:      accountID,
		Username:       username,
		HashedPassword: hashedPassword,
		CreatedAt:      time.Now().UTC(),
	}

	if err := member.Validate(); err != nil {
		return nil, err
	}

	return member, nil
}

// Validate checks if the AccountMember has valid data.
func (m *AccountMember) Validate() error {
	if m.AccountID == 0 {
		return ErrMissingAccount
	}
	if m.Username == "" {
		return ErrEmptyUsername
	}
	if m.HashedPassword == "" {
		return ErrEmptyHashedPassword
	}
	return nil
}
