package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/yelinaung/moniclear/internal/auth"
	"gitlab.com/yelinaung/moniclear/internal/localstore"
	"gitlab.com/yelinaung/moniclear/internal/logger"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in identity.
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrSignedIn is returned when entering guest mode while signed in.
	ErrSignedIn = errors.New("already signed in")
)

const guestFlagValue = "true"

// KeyValueStore is the durable local store holding the guest flag and cached session.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Listener observes committed transitions.
type Listener func(ctx context.Context, from, to State)

// Holder owns the session state. It owns no financial data.
type Holder struct {
	provider auth.Provider
	store    KeyValueStore

	// op serializes transitions so listeners observe them in order.
	op sync.Mutex

	mu        sync.Mutex
	state     State
	session   *auth.Session
	listeners []Listener
}

// New computes the initial state from the durable guest flag: Guest when set,
// otherwise Authenticating until Restore settles it. provider may be nil when
// no identity provider is configured.
func New(ctx context.Context, provider auth.Provider, store KeyValueStore) *Holder {
	h := &Holder{provider: provider, store: store, state: Authenticating{}}

	flag, ok, err := store.Get(ctx, localstore.KeyIsGuest)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to read guest flag")
	}
	if ok && flag == guestFlagValue {
		h.state = Guest{}
	}
	return h
}

// State returns the current state.
func (h *Holder) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IDToken returns the provider token of the current session, if any.
func (h *Holder) IDToken() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return ""
	}
	return h.session.IDToken
}

// OnTransition registers l to be called after every committed transition.
func (h *Holder) OnTransition(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// transition commits to and notifies listeners outside mu. Callers hold op.
func (h *Holder) transition(ctx context.Context, to State, session *auth.Session) {
	h.mu.Lock()
	from := h.state
	h.state = to
	h.session = session
	listeners := append([]Listener(nil), h.listeners...)
	h.mu.Unlock()

	logger.Log.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Session transition")

	for _, l := range listeners {
		l(ctx, from, to)
	}
}

// Restore settles an Authenticating start state by asking the provider to
// confirm the cached session. Guest and settled states are left unchanged.
func (h *Holder) Restore(ctx context.Context) error {
	h.op.Lock()
	defer h.op.Unlock()

	if _, ok := h.State().(Authenticating); !ok {
		return nil
	}

	cached, err := h.loadSession(ctx)
	if err != nil || cached == nil || h.provider == nil {
		h.transition(ctx, Unauthenticated{}, nil)
		return err
	}

	identity, err := h.provider.Lookup(ctx, cached.IDToken)
	if err != nil {
		if auth.IsCode(err, auth.CodeSessionExpired) || auth.IsCode(err, auth.CodeUserNotFound) {
			h.removeSession(ctx)
		}
		h.transition(ctx, Unauthenticated{}, nil)
		return err
	}

	cached.Identity = *identity
	h.saveSession(ctx, cached)
	h.transition(ctx, Authenticated{Identity: *identity}, cached)
	logger.Log.Info().
		Str("identity_hash", logger.HashIdentity(identity.UID)).
		Msg("Restored session")
	return nil
}

// EnterGuest starts a guest session and persists the guest flag.
func (h *Holder) EnterGuest(ctx context.Context) error {
	h.op.Lock()
	defer h.op.Unlock()

	switch h.State().(type) {
	case Guest:
		return nil
	case Authenticated:
		return ErrSignedIn
	}

	if err := h.store.Set(ctx, localstore.KeyIsGuest, guestFlagValue); err != nil {
		return fmt.Errorf("failed to persist guest flag: %w", err)
	}
	h.transition(ctx, Guest{}, nil)
	logger.Log.Info().Msg("Entered guest mode")
	return nil
}

// SignInWithEmail signs in with an email and password.
func (h *Holder) SignInWithEmail(ctx context.Context, email, password string) (auth.Identity, error) {
	return h.signIn(ctx, func(p auth.Provider) (*auth.Session, error) {
		return p.SignInWithEmail(ctx, email, password)
	})
}

// SignUpWithEmail creates an account and sends a verification email. The new
// identity stays unverified until the emailed link is followed.
func (h *Holder) SignUpWithEmail(ctx context.Context, email, password string) (auth.Identity, error) {
	return h.signIn(ctx, func(p auth.Provider) (*auth.Session, error) {
		s, err := p.SignUpWithEmail(ctx, email, password)
		if err != nil {
			return nil, err
		}
		if err := p.SendEmailVerification(ctx, s.IDToken); err != nil {
			logger.Log.Warn().Err(err).
				Str("identity_hash", logger.HashIdentity(s.Identity.UID)).
				Msg("Failed to send verification email")
		}
		return s, nil
	})
}

// SignInFederated signs in with an external identity provider credential.
func (h *Holder) SignInFederated(ctx context.Context, cred auth.FederatedCredential) (auth.Identity, error) {
	return h.signIn(ctx, func(p auth.Provider) (*auth.Session, error) {
		return p.SignInFederated(ctx, cred)
	})
}

func (h *Holder) signIn(ctx context.Context, do func(auth.Provider) (*auth.Session, error)) (auth.Identity, error) {
	h.op.Lock()
	defer h.op.Unlock()

	if h.provider == nil {
		return auth.Identity{}, errNoProvider()
	}

	h.mu.Lock()
	prev, prevSession := h.state, h.session
	h.mu.Unlock()

	h.transition(ctx, Authenticating{}, prevSession)
	session, err := do(h.provider)
	if err != nil {
		h.transition(ctx, prev, prevSession)
		return auth.Identity{}, err
	}

	// A signed-in identity and the guest flag never coexist.
	if err := h.store.Remove(ctx, localstore.KeyIsGuest); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to clear guest flag")
	}
	h.saveSession(ctx, session)
	h.transition(ctx, Authenticated{Identity: session.Identity}, session)

	logger.Log.Info().
		Str("identity_hash", logger.HashIdentity(session.Identity.UID)).
		Str("provider", session.Identity.ProviderID).
		Msg("Signed in")
	return session.Identity, nil
}

// StartPhoneSignIn obtains a challenge token from challenger and asks the
// provider to text a sign-in code. Code confirmation is not supported, so the
// state returns to its previous value either way.
func (h *Holder) StartPhoneSignIn(ctx context.Context, phoneNumber string, challenger auth.Challenger) (*auth.PhoneChallenge, error) {
	h.op.Lock()
	defer h.op.Unlock()

	if h.provider == nil {
		return nil, errNoProvider()
	}
	if err := auth.ValidatePhoneNumber(phoneNumber); err != nil {
		return nil, err
	}
	if challenger == nil {
		return nil, auth.NewAuthError(auth.CodeMissingChallenge, nil)
	}

	h.mu.Lock()
	prev, prevSession := h.state, h.session
	h.mu.Unlock()

	h.transition(ctx, Authenticating{}, prevSession)
	defer h.transition(ctx, prev, prevSession)

	token, err := challenger.Challenge(ctx)
	if err != nil {
		var ae *auth.AuthError
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, auth.NewAuthError(auth.CodeMissingChallenge, err)
	}
	return h.provider.SendPhoneCode(ctx, phoneNumber, token)
}

// SendPasswordReset emails a password reset link. It does not change state.
func (h *Holder) SendPasswordReset(ctx context.Context, email string) error {
	if h.provider == nil {
		return errNoProvider()
	}
	return h.provider.SendPasswordReset(ctx, email)
}

// ResendVerification emails a new verification link to the signed-in identity.
func (h *Holder) ResendVerification(ctx context.Context) error {
	if h.provider == nil {
		return errNoProvider()
	}
	h.mu.Lock()
	_, signedIn := h.state.(Authenticated)
	session := h.session
	h.mu.Unlock()
	if !signedIn || session == nil {
		return ErrNotAuthenticated
	}
	return h.provider.SendEmailVerification(ctx, session.IDToken)
}

// Logout ends a guest or signed-in session. The cached provider session is
// dropped locally; there is no server-side sign-out.
func (h *Holder) Logout(ctx context.Context) error {
	h.op.Lock()
	defer h.op.Unlock()

	if _, ok := h.State().(Unauthenticated); ok {
		return nil
	}

	var errs []error
	if err := h.store.Remove(ctx, localstore.KeyIsGuest); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear guest flag: %w", err))
	}
	if err := h.store.Remove(ctx, localstore.KeyAuthSession); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove cached session: %w", err))
	}
	h.transition(ctx, Unauthenticated{}, nil)
	logger.Log.Info().Msg("Signed out")
	return errors.Join(errs...)
}

func (h *Holder) loadSession(ctx context.Context) (*auth.Session, error) {
	raw, ok, err := h.store.Get(ctx, localstore.KeyAuthSession)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var s auth.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.IDToken == "" {
		logger.Log.Warn().Err(err).Msg("Discarding unreadable cached session")
		h.removeSession(ctx)
		return nil, nil
	}
	return &s, nil
}

func (h *Holder) saveSession(ctx context.Context, s *auth.Session) {
	data, err := json.Marshal(s)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to encode session")
		return
	}
	if err := h.store.Set(ctx, localstore.KeyAuthSession, string(data)); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to cache session")
	}
}

func (h *Holder) removeSession(ctx context.Context) {
	if err := h.store.Remove(ctx, localstore.KeyAuthSession); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to remove cached session")
	}
}

func errNoProvider() error {
	return auth.NewAuthError(auth.CodeInternal, errors.New("identity provider is not configured"))
}
