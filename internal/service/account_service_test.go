package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/store"
)

type fakeAccountStore struct {
	accounts map[int64]*domain.Account
}

func (f *fakeAccountStore) Create(ctx context.Context, account *domain.Account) error {
	account.ID = int64(len(f.accounts) + 1)
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeAccountStore) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	account, ok := f.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeAccountStore) WithTx(tx *sql.Tx) store.AccountStore { return f }

type fakeMemberStore struct {
	members map[int64]*domain.AccountMember
}

func (f *fakeMemberStore) Create(ctx context.Context, member *domain.AccountMember) error {
	for _, existing := range f.members {
		if existing.Username == member.Username {
			return store.ErrUsernameExists
		}
	}
	member.ID = int64(len(f.members) + 1)
	f.members[member.ID] = member
	return nil
}

func (f *fakeMemberStore) GetByID(ctx context.Context, id int64) (*domain.AccountMember, error) {
	member, ok := f.members[id]
	if !ok {
		return nil, store.ErrMemberNotFound
	}
	return member, nil
}

func (f *fakeMemberStore) GetByUsername(ctx context.Context, username string) (*domain.AccountMember, error) {
	for _, member := range f.members {
		if member.Username == username {
			return member, nil
		}
	}
	return nil, store.ErrMemberNotFound
}

func (f *fakeMemberStore) WithTx(tx *sql.Tx) store.MemberStore { return f }

func newTestService(t *testing.T) (*AccountService, *fakeAccountStore, *fakeMemberStore) {
	t.Helper()
	accounts := &fakeAccountStore{accounts: make(map[int64]*domain.Account)}
	members := &fakeMemberStore{members: make(map[int64]*domain.AccountMember)}
	return NewAccountService(nil, accounts, members, nil), accounts, members
}

func seedMember(t *testing.T, accounts *fakeAccountStore, members *fakeMemberStore, username, password string, active bool) *domain.AccountMember {
	t.Helper()
	account := &domain.Account{Name: username + "-account", IsActive: active}
	require.NoError(t, accounts.Create(context.Background(), account))

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	member, err := domain.NewAccountMember(account.ID, username, string(hashed))
	require.NoError(t, err)
	require.NoError(t, members.Create(context.Background(), member))
	return member
}

func TestAuthenticateSucceeds(t *testing.T) {
	svc, accounts, members := newTestService(t)
	seeded := seedMember(t, accounts, members, "gregg", "correct-horse", true)

	member, err := svc.Authenticate(context.Background(), "gregg", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, member.ID)
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	svc, accounts, members := newTestService(t)
	seedMember(t, accounts, members, "gregg", "correct-horse", true)

	_, err := svc.Authenticate(context.Background(), "gregg", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRejectsUnknownUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Authenticate(context.Background(), "nobody", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRejectsInactiveAccount(t *testing.T) {
	svc, accounts, members := newTestService(t)
	seedMember(t, accounts, members, "gregg", "correct-horse", false)

	_, err := svc.Authenticate(context.Background(), "gregg", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAddMemberRequiresExistingAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.AddMember(context.Background(), 99, "gregg", "pw")
	assert.True(t, store.IsNotFoundError(err))
}

func TestAddMemberHashesPassword(t *testing.T) {
	svc, accounts, _ := newTestService(t)
	account := &domain.Account{Name: "acme", IsActive: true}
	require.NoError(t, accounts.Create(context.Background(), account))

	member, err := svc.AddMember(context.Background(), account.ID, "gregg", "plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, "plaintext", member.HashedPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(member.HashedPassword), []byte("plaintext")))
}
