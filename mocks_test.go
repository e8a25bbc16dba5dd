package auth_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	auth "github.com/goliatone/go-lms-auth"
)

// MockAccountStore implements auth.AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	args := m.Called(ctx, id)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccountStore) GetLocalByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccountStore) GetByProvider(ctx context.Context, provider, providerID string) (*auth.Account, error) {
	args := m.Called(ctx, provider, providerID)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccountStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, account)
	if fn, ok := args.Get(0).(func(context.Context, *auth.Account) *auth.Account); ok {
		return fn(ctx, account), args.Error(1)
	}
	created, _ := args.Get(0).(*auth.Account)
	return created, args.Error(1)
}

func (m *MockAccountStore) UpdateProfile(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountStore) MarkActive(ctx context.Context, id int64, at time.Time, prov *auth.Provenance) error {
	args := m.Called(ctx, id, at, prov)
	return args.Error(0)
}

func (m *MockAccountStore) MarkInactive(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockAccountStore) TrackFailedLogin(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// MockAccessStore implements auth.AccessStore
type MockAccessStore struct {
	mock.Mock
}

func (m *MockAccessStore) GetRole(ctx context.Context, id int64) (*auth.Role, error) {
	args := m.Called(ctx, id)
	role, _ := args.Get(0).(*auth.Role)
	return role, args.Error(1)
}

func (m *MockAccessStore) RoleCapabilities(ctx context.Context, roleID int64) ([]string, error) {
	args := m.Called(ctx, roleID)
	caps, _ := args.Get(0).([]string)
	return caps, args.Error(1)
}

func (m *MockAccessStore) AccountGrants(ctx context.Context, accountID int64) ([]string, error) {
	args := m.Called(ctx, accountID)
	caps, _ := args.Get(0).([]string)
	return caps, args.Error(1)
}

func (m *MockAccessStore) AccountBlocks(ctx context.Context, accountID int64) ([]string, error) {
	args := m.Called(ctx, accountID)
	caps, _ := args.Get(0).([]string)
	return caps, args.Error(1)
}

func (m *MockAccessStore) GetCapabilityByName(ctx context.Context, name string) (*auth.Capability, error) {
	args := m.Called(ctx, name)
	capability, _ := args.Get(0).(*auth.Capability)
	return capability, args.Error(1)
}

func (m *MockAccessStore) AddGrant(ctx context.Context, accountID, capabilityID int64) error {
	return m.Called(ctx, accountID, capabilityID).Error(0)
}

func (m *MockAccessStore) RemoveGrant(ctx context.Context, accountID, capabilityID int64) (bool, error) {
	args := m.Called(ctx, accountID, capabilityID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccessStore) AddBlock(ctx context.Context, accountID, capabilityID int64, reason string) error {
	return m.Called(ctx, accountID, capabilityID, reason).Error(0)
}

func (m *MockAccessStore) RemoveBlock(ctx context.Context, accountID, capabilityID int64) (bool, error) {
	args := m.Called(ctx, accountID, capabilityID)
	return args.Bool(0), args.Error(1)
}

// testClock is a settable time source shared by the components under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainHasher keeps unit tests fast, bcrypt is covered separately
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", auth.ErrNoEmptyString
	}
	return "plain:" + password, nil
}

func (plainHasher) ComparePasswordAndHash(password, hash string) error {
	if hash != "plain:"+password {
		return auth.ErrInvalidCredentials
	}
	return nil
}

const testSigningKey = "lms-auth-test-signing-key-0123456789"

func strPtr(s string) *string { return &s }
