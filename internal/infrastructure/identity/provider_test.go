package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/identity"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/repository"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/timeutil"
)

const secret = "test-secret-0123456789"

type recordingProfiles struct {
	mu    sync.Mutex
	calls map[string]string
	err   error
}

func (r *recordingProfiles) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *recordingProfiles) CreateProfile(_ context.Context, userID, email, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.calls == nil {
		r.calls = map[string]string{}
	}
	if _, ok := r.calls[userID]; ok {
		return shared.ErrProfileExists
	}
	r.calls[userID] = email + "|" + displayName
	return nil
}

func newProvider(t *testing.T, clock timeutil.Clock, profiles identity.ProfileCreator) *identity.Provider {
	t.Helper()
	p, err := identity.NewProvider(identity.Config{
		Secret:     secret,
		TokenTTL:   time.Hour,
		Issuer:     "bible-study",
		BcryptCost: bcrypt.MinCost,
	}, repository.NewAccountRepository(docstore.NewMemoryStore()), profiles, clock, nil)
	require.NoError(t, err)
	return p
}

func TestSignUpSignInAuthenticate(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewFixedClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	profiles := &recordingProfiles{}
	p := newProvider(t, clock, profiles)

	session, err := p.SignUp(ctx, " Ruth@Example.com", "secret1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, session.UserID)
	assert.Equal(t, clock.Now().Add(time.Hour), session.ExpiresAt)
	assert.Equal(t, "ruth@example.com|ruth", profiles.calls[session.UserID])

	uid, err := p.Authenticate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, uid)

	again, err := p.SignIn(ctx, "RUTH@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, again.UserID)

	_, err = p.SignIn(ctx, "ruth@example.com", "wrong-password")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = p.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.True(t, shared.IsUnauthorized(err))
}

func TestSignUp_Validation(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, nil, &recordingProfiles{})

	_, err := p.SignUp(ctx, "not-an-email", "secret1", "X")
	assert.ErrorIs(t, err, shared.ErrInvalidEmail)

	_, err = p.SignUp(ctx, "", "secret1", "X")
	assert.ErrorIs(t, err, shared.ErrInvalidEmail)

	_, err = p.SignUp(ctx, "a@b.co", "12345", "X")
	assert.ErrorIs(t, err, shared.ErrWeakPassword)
	assert.True(t, shared.IsValidation(err))

	_, err = p.SignUp(ctx, "a@b.co", "123456", "X")
	require.NoError(t, err)
	_, err = p.SignUp(ctx, "A@B.co", "123456", "Y")
	assert.ErrorIs(t, err, shared.ErrEmailTaken)
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestSignUp_ProfileFailure(t *testing.T) {
	p := newProvider(t, nil, &recordingProfiles{err: shared.ErrStoreUnavailable.Wrap(errors.New("down"))})

	_, err := p.SignUp(context.Background(), "a@b.co", "123456", "A")
	assert.True(t, shared.IsUnavailable(err))
}

func TestSignIn_CreatesProfileMissedAtSignUp(t *testing.T) {
	ctx := context.Background()
	profiles := &recordingProfiles{err: shared.ErrStoreUnavailable.Wrap(errors.New("down"))}
	p := newProvider(t, nil, profiles)

	_, err := p.SignUp(ctx, "naomi@example.com", "123456", "Naomi")
	require.True(t, shared.IsUnavailable(err))

	// still down: sign-in reports the outage instead of issuing a session
	_, err = p.SignIn(ctx, "naomi@example.com", "123456")
	assert.True(t, shared.IsUnavailable(err))

	profiles.setErr(nil)

	_, err = p.SignUp(ctx, "naomi@example.com", "123456", "Naomi")
	assert.ErrorIs(t, err, shared.ErrEmailTaken)

	session, err := p.SignIn(ctx, "naomi@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "naomi@example.com|Naomi", profiles.calls[session.UserID])

	// the profile now exists; later sign-ins leave it alone
	again, err := p.SignIn(ctx, "naomi@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, again.UserID)
	assert.Len(t, profiles.calls, 1)
}

func TestAuthenticate_Rejects(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewFixedClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	p := newProvider(t, clock, nil)

	session, err := p.SignUp(ctx, "a@b.co", "123456", "A")
	require.NoError(t, err)

	_, err = p.Authenticate("")
	assert.ErrorIs(t, err, shared.ErrInvalidToken)

	_, err = p.Authenticate(session.Token + "x")
	assert.ErrorIs(t, err, shared.ErrInvalidToken)

	// signed with another key
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "someone",
		Issuer:    "bible-study",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString([]byte("another-secret-0123456789"))
	require.NoError(t, err)
	_, err = p.Authenticate(forged)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)

	clock.Advance(2 * time.Hour)
	_, err = p.Authenticate(session.Token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
	assert.True(t, shared.IsUnauthorized(err))
}

func TestNewProvider_ShortSecret(t *testing.T) {
	_, err := identity.NewProvider(identity.Config{Secret: "short"}, nil, nil, nil, nil)
	assert.Error(t, err)
}
