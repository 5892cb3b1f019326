package tokens

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/restaurant/pkg/roles"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	return Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "restaurant-auth",
	}
}

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(testConfig(), WithClock(clock.Now))
	require.NoError(t, err)
	return svc, clock
}

func TestNewService_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty access secret", mutate: func(c *Config) { c.AccessSecret = nil }},
		{name: "empty refresh secret", mutate: func(c *Config) { c.RefreshSecret = nil }},
		{name: "same secrets", mutate: func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessTTL = 0 }},
		{name: "negative refresh ttl", mutate: func(c *Config) { c.RefreshTTL = -time.Second }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewService(cfg)
			require.Error(t, err)
		})
	}
}

func TestVerify_AccessRoundTrip(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)

	for _, role := range roles.All() {
		id := uuid.NewString()
		email := "user+" + string(role) + "@x.com"

		issued, err := svc.IssueAccessToken(id, email, role)
		require.NoError(t, err)
		assert.True(t, clock.Now().Add(15*time.Minute).Equal(issued.ExpiresAt))

		claims, err := svc.Verify(issued.Token, Access)
		require.NoError(t, err)
		assert.Equal(t, Identity{ID: id, Email: email, Role: role}, claims.Identity())
		assert.Equal(t, Access, claims.Type)
	}
}

func TestVerify_RefreshCarriesIssuedAt(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)
	id := uuid.NewString()

	issued, err := svc.IssueRefreshToken(id, "a@x.com", roles.Cook)
	require.NoError(t, err)

	claims, err := svc.Verify(issued.Token, Refresh)
	require.NoError(t, err)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, clock.Now().Unix(), claims.IssuedAt.Unix())
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, clock.Now().Add(7*24*time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestIssuePair_TokensDifferWithinSameSecond(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	id := uuid.NewString()

	first, err := svc.IssuePair(id, "a@x.com", roles.Customer)
	require.NoError(t, err)
	second, err := svc.IssuePair(id, "a@x.com", roles.Customer)
	require.NoError(t, err)

	assert.NotEqual(t, first.Access.Token, second.Access.Token)
	assert.NotEqual(t, first.Refresh.Token, second.Refresh.Token)
	assert.NotEqual(t, first.Access.Token, first.Refresh.Token)
}

func TestIssue_RejectsBadInput(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.IssueAccessToken("", "a@x.com", roles.Customer)
	require.Error(t, err)

	_, err = svc.IssueRefreshToken(uuid.NewString(), "a@x.com", roles.Role("root"))
	require.ErrorIs(t, err, roles.ErrUnknownRole)
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	id := uuid.NewString()

	access, err := svc.IssueAccessToken(id, "a@x.com", roles.Waiter)
	require.NoError(t, err)
	refresh, err := svc.IssueRefreshToken(id, "a@x.com", roles.Waiter)
	require.NoError(t, err)

	other, err := NewService(Config{
		AccessSecret:  []byte("other-access"),
		RefreshSecret: []byte("other-refresh"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "restaurant-auth",
	})
	require.NoError(t, err)
	forged, err := other.IssueAccessToken(id, "a@x.com", roles.Admin)
	require.NoError(t, err)

	parts := strings.Split(access.Token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: roles.Admin,
		Type: Access,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		class Class
	}{
		{name: "empty", token: "", class: Access},
		{name: "garbage", token: "not-a-valid-jwt", class: Access},
		{name: "refresh presented as access", token: refresh.Token, class: Access},
		{name: "access presented as refresh", token: access.Token, class: Refresh},
		{name: "foreign secret", token: forged.Token, class: Access},
		{name: "tampered signature", token: tampered, class: Access},
		{name: "alg none", token: noneToken, class: Access},
		{name: "unknown class", token: access.Token, class: Class("id")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := svc.Verify(tt.token, tt.class)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)

	issued, err := svc.IssueAccessToken(uuid.NewString(), "a@x.com", roles.Cashier)
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	_, err = svc.Verify(issued.Token, Access)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = svc.Verify(issued.Token, Access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()

	svc, clock := newTestService(t)

	cfg := testConfig()
	cfg.Issuer = "someone-else"
	foreign, err := NewService(cfg, WithClock(clock.Now))
	require.NoError(t, err)

	issued, err := foreign.IssueAccessToken(uuid.NewString(), "a@x.com", roles.Customer)
	require.NoError(t, err)

	_, err = svc.Verify(issued.Token, Access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashRefreshToken(t *testing.T) {
	t.Parallel()

	h := HashRefreshToken("token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashRefreshToken("token"))
	assert.NotEqual(t, h, HashRefreshToken("token2"))
}
