package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

type mockProvider struct {
	me         *domain.Official
	signInErr  error
	signOutErr error
	signOuts   int
	passwords  [][2]string
	passErr    error
}

func (m *mockProvider) SignIn(_ context.Context, email, _ string) (domain.Official, error) {
	if m.signInErr != nil {
		return domain.Official{}, m.signInErr
	}
	off := domain.Official{ID: 7, Name: "Mingma", Email: email}
	m.me = &off
	return off, nil
}

func (m *mockProvider) SignOut(context.Context) error {
	m.signOuts++
	m.me = nil
	return m.signOutErr
}

func (m *mockProvider) Me(context.Context) (domain.Official, error) {
	if m.me == nil {
		return domain.Official{}, errors.New("not authorized")
	}
	return *m.me, nil
}

func (m *mockProvider) UpdatePassword(_ context.Context, current, next string) error {
	if m.passErr != nil {
		return m.passErr
	}
	m.passwords = append(m.passwords, [2]string{current, next})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_Restores(t *testing.T) {
	p := &mockProvider{me: &domain.Official{ID: 3, Name: "Pasang"}}
	s := New(p, discardLogger())

	s.Load(context.Background())

	off, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, int64(3), off.ID)
}

func TestLoad_SignedOut(t *testing.T) {
	s := New(&mockProvider{}, discardLogger())

	s.Load(context.Background())

	_, ok := s.User()
	assert.False(t, ok)
	_, err := s.Require()
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestSignInSignOut(t *testing.T) {
	p := &mockProvider{}
	s := New(p, discardLogger())

	off, err := s.SignIn(context.Background(), "m@example.org", "secret")
	require.NoError(t, err)
	assert.Equal(t, "m@example.org", off.Email)

	got, err := s.Require()
	require.NoError(t, err)
	assert.Equal(t, off, got)

	require.NoError(t, s.SignOut(context.Background()))
	_, ok := s.User()
	assert.False(t, ok)
	assert.Equal(t, 1, p.signOuts)
}

func TestSignIn_Failure(t *testing.T) {
	s := New(&mockProvider{signInErr: errors.New("bad credentials")}, discardLogger())

	_, err := s.SignIn(context.Background(), "m@example.org", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")
	_, ok := s.User()
	assert.False(t, ok)
}

func TestSignOut_ClearsOnRemoteFailure(t *testing.T) {
	p := &mockProvider{signOutErr: errors.New("timeout")}
	s := New(p, discardLogger())
	_, err := s.SignIn(context.Background(), "m@example.org", "secret")
	require.NoError(t, err)

	err = s.SignOut(context.Background())
	require.Error(t, err)
	_, ok := s.User()
	assert.False(t, ok)
}

func TestSignOut_NotSignedIn(t *testing.T) {
	p := &mockProvider{}
	s := New(p, discardLogger())

	assert.ErrorIs(t, s.SignOut(context.Background()), ErrNotSignedIn)
	assert.Zero(t, p.signOuts)
}

func TestUpdatePassword(t *testing.T) {
	p := &mockProvider{}
	s := New(p, discardLogger())

	assert.ErrorIs(t, s.UpdatePassword(context.Background(), "old", "new"), ErrNotSignedIn)

	_, err := s.SignIn(context.Background(), "m@example.org", "old")
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdatePassword(context.Background(), "old", ""), ErrInvalidPassword)
	assert.ErrorIs(t, s.UpdatePassword(context.Background(), "old", "old"), ErrInvalidPassword)
	assert.Empty(t, p.passwords)

	require.NoError(t, s.UpdatePassword(context.Background(), "old", "new"))
	assert.Equal(t, [][2]string{{"old", "new"}}, p.passwords)
	_, ok := s.User()
	assert.True(t, ok)
}

func TestUpdatePassword_RemoteFailureKeepsSession(t *testing.T) {
	p := &mockProvider{passErr: errors.New("current password is incorrect")}
	s := New(p, discardLogger())
	_, err := s.SignIn(context.Background(), "m@example.org", "old")
	require.NoError(t, err)

	err = s.UpdatePassword(context.Background(), "wrong", "new")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current password is incorrect")
	_, ok := s.User()
	assert.True(t, ok)
}
