package tests

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/pkg/db"
	"github.com/Skotchmaster/restaurant/pkg/hash"
	"github.com/Skotchmaster/restaurant/pkg/roles"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
	"github.com/Skotchmaster/restaurant/services/auth/internal/models"
	"github.com/Skotchmaster/restaurant/services/auth/internal/repo"
	"github.com/Skotchmaster/restaurant/services/auth/internal/service"
)

type integrationEnv struct {
	db    *gorm.DB
	store *repo.GormRepo
	svc   *service.AuthService
	users *service.UsersService
	tok   *tokens.Service
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	dsn := os.Getenv("AUTH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUTH_TEST_DATABASE_URL is required for tests")
	}

	ctx := context.Background()
	gdb, err := db.Open(ctx, dsn)
	require.NoError(t, err)

	store := repo.New(gdb)
	require.NoError(t, store.Migrate(ctx))

	tok, err := tokens.NewService(tokens.Config{
		AccessSecret:  []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "restaurant-auth",
	})
	require.NoError(t, err)

	hasher := hash.Bcrypt{Cost: bcrypt.MinCost}
	env := &integrationEnv{
		db:    gdb,
		store: store,
		tok:   tok,
		svc:   &service.AuthService{Store: store, Tokens: tok, Hasher: hasher},
		users: &service.UsersService{Store: store, Hasher: hasher},
	}

	t.Cleanup(func() {
		gdb.Exec("TRUNCATE TABLE users")
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return env
}

func uniqueEmail() string {
	return "u_" + uuid.NewString() + "@example.com"
}

func TestPostgres_SignupConflict(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	email := uniqueEmail()

	_, err := env.svc.Signup(ctx, service.SignupInput{Email: email, Password: "Secret123", FullName: "A"})
	require.NoError(t, err)

	_, err = env.svc.Signup(ctx, service.SignupInput{Email: email, Password: "Secret123", FullName: "B"})
	assert.ErrorIs(t, err, service.ErrConflict)

	err = env.store.Insert(ctx, &models.User{Email: email, PasswordHash: "x"})
	assert.ErrorIs(t, err, repo.ErrDuplicateEmail)
}

func TestPostgres_RefreshRotation(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	s, err := env.svc.Signup(ctx, service.SignupInput{Email: uniqueEmail(), Password: "Secret123", FullName: "A"})
	require.NoError(t, err)

	next, err := env.svc.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, s.RefreshToken)
	require.ErrorIs(t, err, service.ErrUnauthorized)

	require.NoError(t, env.svc.Logout(ctx, s.User.ID))
	require.NoError(t, env.svc.Logout(ctx, s.User.ID))

	_, err = env.svc.Refresh(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestPostgres_ConcurrentRefresh(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	s, err := env.svc.Signup(ctx, service.SignupInput{Email: uniqueEmail(), Password: "Secret123", FullName: "A"})
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = env.svc.Refresh(ctx, s.RefreshToken)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestPostgres_ManagerCannotPromoteCustomer(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	mgr, err := env.users.Create(ctx, service.Actor{Role: roles.Admin}, service.CreateUserInput{Email: uniqueEmail(), Password: "Secret123", FullName: "M", Role: "manager"})
	require.NoError(t, err)
	cust, err := env.users.Create(ctx, service.Actor{Role: roles.Admin}, service.CreateUserInput{Email: uniqueEmail(), Password: "Secret123", FullName: "C"})
	require.NoError(t, err)

	role := "cook"
	_, err = env.users.Update(ctx, service.Actor{ID: mgr.ID, Role: mgr.Role}, cust.ID, service.UpdateUserInput{Role: &role})
	assert.ErrorIs(t, err, service.ErrForbidden)
}
