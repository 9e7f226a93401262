package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type dummyHasher interface {
	DummyHash() string
}

// Auther registers identities and logs them in
type Auther struct {
	store            IdentityStore
	hasher           PasswordHasher
	tokenService     TokenService
	throttle         LoginThrottle
	logger           Logger
	activitySink     ActivitySink
	phoneRegion      string
	deterministicIDs bool
	now              func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store IdentityStore, hasher PasswordHasher, tokenService TokenService) *Auther {
	return &Auther{
		store:        store,
		hasher:       hasher,
		tokenService: tokenService,
		logger:       defLogger{},
		phoneRegion:  DefaultPhoneRegion,
		now:          time.Now,
	}
}

// NewAuthenticatorFromConfig applies the phone region and ID options of cfg
func NewAuthenticatorFromConfig(store IdentityStore, hasher PasswordHasher, tokenService TokenService, cfg Config) *Auther {
	return NewAuthenticator(store, hasher, tokenService).
		WithPhoneRegion(cfg.GetPhoneRegion()).
		WithDeterministicIDs(cfg.UseDeterministicIDs())
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = sink
	return s
}

// WithLoginThrottle enables counting failed logins
func (s *Auther) WithLoginThrottle(throttle LoginThrottle) *Auther {
	s.throttle = throttle
	return s
}

// WithPhoneRegion sets the region phone numbers are checked against
func (s *Auther) WithPhoneRegion(region string) *Auther {
	if region != "" {
		s.phoneRegion = region
	}
	return s
}

// WithDeterministicIDs derives identity IDs from the email
func (s *Auther) WithDeterministicIDs(enabled bool) *Auther {
	s.deterministicIDs = enabled
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Register creates an identity with the default role and returns it with
// a fresh token.
func (s *Auther) Register(ctx context.Context, req RegisterRequest) (*IdentityBundle, error) {
	req = req.Normalize()
	if err := req.ValidateWithRegion(s.phoneRegion); err != nil {
		return nil, err
	}

	exists, err := s.store.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, s.internal(err, "failed to check email availability")
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	exists, err = s.store.ExistsByPhone(ctx, req.Phone)
	if err != nil {
		return nil, s.internal(err, "failed to check phone availability")
	}
	if exists {
		return nil, ErrDuplicatePhone
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if HasTextCode(err, TextCodeValidationFailed) {
			return nil, err
		}
		return nil, s.internal(err, "failed to hash password")
	}

	user := &User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         DefaultRole,
	}
	if s.deterministicIDs {
		if id, err := hashid.NewUUID(req.Email); err == nil {
			user.ID = id
		}
	}

	// a concurrent registration can still win the race between the checks
	// above and this insert, the store's constraint decides
	created, err := s.store.Create(ctx, user)
	if err != nil {
		if IsDuplicateError(err) {
			return nil, err
		}
		return nil, s.internal(err, "failed to create identity")
	}

	identity := NewIdentityFromUser(created)
	token, err := s.tokenService.Generate(identity)
	if err != nil {
		return nil, s.internal(err, "failed to issue token")
	}

	s.emitAuthEvent(ctx, ActivityEventRegisterSuccess, identity.Email(), map[string]any{"user_id": identity.ID()})

	return bundleFor(identity, token), nil
}

// Login verifies the credentials and returns a fresh token. An unknown
// email and a wrong password fail the same way.
func (s *Auther) Login(ctx context.Context, req LoginRequest) (*IdentityBundle, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.throttle != nil {
		allowed, err := s.throttle.Allowed(ctx, req.Email)
		if err != nil {
			s.logger.Warn("login throttle unavailable", "error", err)
		} else if !allowed {
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, req.Email, map[string]any{"reason": "throttled"})
			return nil, ErrTooManyLoginAttempts
		}
	}

	user, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			return nil, s.internal(err, "failed to look up identity")
		}
		s.hasher.Verify(req.Password, s.dummyHash())
		s.loginFailed(ctx, req.Email, "unknown identity")
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.loginFailed(ctx, req.Email, "password mismatch")
		return nil, ErrInvalidCredentials
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, req.Email); err != nil {
			s.logger.Warn("failed to reset login throttle", "error", err)
		}
	}

	identity := NewIdentityFromUser(user)
	token, err := s.tokenService.Generate(identity)
	if err != nil {
		return nil, s.internal(err, "failed to issue token")
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, identity.Email(), map[string]any{"user_id": identity.ID()})

	return bundleFor(identity, token), nil
}

// Profile returns the stored identity for a verified subject
func (s *Auther) Profile(ctx context.Context, subject string) (*User, error) {
	user, err := s.store.FindByEmail(ctx, NormalizeEmail(subject))
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		return nil, s.internal(err, "failed to look up identity")
	}
	return user, nil
}

func (s *Auther) loginFailed(ctx context.Context, email, reason string) {
	if s.throttle != nil {
		if err := s.throttle.RecordFailure(ctx, email); err != nil {
			s.logger.Warn("failed to record login failure", "error", err)
		}
	}
	s.emitAuthEvent(ctx, ActivityEventLoginFailure, email, map[string]any{"reason": reason})
}

func (s *Auther) dummyHash() string {
	if d, ok := s.hasher.(dummyHasher); ok {
		return d.DummyHash()
	}
	return ""
}

func (s *Auther) internal(err error, msg string) error {
	s.logger.Error(msg, "error", err)
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithTextCode(TextCodeInternal).
		WithCode(errors.CodeInternal)
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, subject string, metadata map[string]any) {
	sink := s.activitySink
	if sink == nil {
		sink = NewLoggerActivitySink(s.logger)
	}

	event := ActivityEvent{
		EventType:  eventType,
		Subject:    subject,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}
