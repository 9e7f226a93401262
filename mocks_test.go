package auth_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/pgstay/go-auth"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "test-signing-key-with-at-least-32-bytes"

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Info(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Warn(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Error(msg string, args ...any) {
	m.Called(msg, args)
}

// recordingLogger keeps every line so tests can assert on what was logged
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("DBG", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("INF", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("WRN", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("ERR", msg, args) }

func (l *recordingLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// MockIdentityStore implements auth.IdentityStore
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockIdentityStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdentityStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdentityStore) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	created, _ := args.Get(0).(*auth.User)
	return created, args.Error(1)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// captureSink collects events
type captureSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *captureSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// testConfig implements auth.Config
type testConfig struct {
	signingKey    string
	signingMethod string
	contextKey    string
	expiration    int
	authScheme    string
	issuer        string
	audience      []string
	publicRoutes  []string
	phoneRegion   string
	deterministic bool
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:    testSigningKey,
		signingMethod: "HS256",
		contextKey:    "user",
		expiration:    60,
		authScheme:    "Bearer",
		publicRoutes:  auth.DefaultPublicRoutes(""),
		phoneRegion:   "IN",
	}
}

func (c *testConfig) GetSigningKey() string     { return c.signingKey }
func (c *testConfig) GetSigningMethod() string  { return c.signingMethod }
func (c *testConfig) GetContextKey() string     { return c.contextKey }
func (c *testConfig) GetTokenExpiration() int   { return c.expiration }
func (c *testConfig) GetAuthScheme() string     { return c.authScheme }
func (c *testConfig) GetIssuer() string         { return c.issuer }
func (c *testConfig) GetAudience() []string     { return c.audience }
func (c *testConfig) GetPublicRoutes() []string { return c.publicRoutes }
func (c *testConfig) GetPasswordCost() int      { return bcrypt.MinCost }
func (c *testConfig) GetPhoneRegion() string    { return c.phoneRegion }
func (c *testConfig) UseDeterministicIDs() bool { return c.deterministic }

func newTestTokenService(opts ...auth.TokenServiceOption) *auth.TokenServiceImpl {
	return auth.NewTokenService([]byte(testSigningKey), 60, "", nil, &recordingLogger{}, opts...)
}

func newTestHasher() *auth.BcryptHasher {
	return auth.NewBcryptHasher(bcrypt.MinCost)
}
