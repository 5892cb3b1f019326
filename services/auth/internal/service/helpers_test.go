package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/restaurant/pkg/db"
	"github.com/Skotchmaster/restaurant/pkg/directory"
	"github.com/Skotchmaster/restaurant/pkg/events"
	"github.com/Skotchmaster/restaurant/pkg/hash"
	"github.com/Skotchmaster/restaurant/pkg/roles"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
	"github.com/Skotchmaster/restaurant/services/auth/internal/models"
	"github.com/Skotchmaster/restaurant/services/auth/internal/repo"
)

type recordedEvent struct {
	Topic string
	Key   string
	Event events.UserEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Topic: topic, Key: key, Event: event.(events.UserEvent)})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event.Type
	}
	return out
}

func (p *recordingPublisher) last() recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fakeDirectory struct {
	mu      sync.Mutex
	docs    map[string]directory.UserDoc
	failing bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{docs: map[string]directory.UserDoc{}}
}

func (d *fakeDirectory) IndexUser(_ context.Context, doc directory.UserDoc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[doc.ID] = doc
	return nil
}

func (d *fakeDirectory) RemoveUser(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.docs, id)
	return nil
}

func (d *fakeDirectory) SearchUsers(_ context.Context, q string, _, _ int) (int64, []directory.UserDoc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failing {
		return 0, nil, errors.New("cluster unavailable")
	}
	var out []directory.UserDoc
	for _, doc := range d.docs {
		if doc.FullName == q || doc.Email == q {
			out = append(out, doc)
		}
	}
	return int64(len(out)), out, nil
}

type testEnv struct {
	Store  *repo.GormRepo
	Tokens *tokens.Service
	Events *recordingPublisher
	Dir    *fakeDirectory
	Auth   *AuthService
	Users  *UsersService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	gdb, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := repo.New(gdb)
	require.NoError(t, store.Migrate(ctx))

	tok, err := tokens.NewService(tokens.Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "restaurant-auth",
	})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	dir := newFakeDirectory()
	hasher := hash.Bcrypt{Cost: bcrypt.MinCost}
	notifier := Notifier{Events: pub, Topic: "user_events", Directory: dir}

	return &testEnv{
		Store:  store,
		Tokens: tok,
		Events: pub,
		Dir:    dir,
		Auth:   &AuthService{Store: store, Tokens: tok, Hasher: hasher, Notifier: notifier},
		Users:  &UsersService{Store: store, Hasher: hasher, Notifier: notifier},
	}
}

// seed inserts a user directly, bypassing signup policy.
func (env *testEnv) seed(t *testing.T, email string, role roles.Role) *models.User {
	t.Helper()

	pw, err := env.Users.Hasher.Hash("Secret123")
	require.NoError(t, err)
	u := &models.User{Email: email, FullName: "Seeded " + string(role), PasswordHash: pw, Role: role}
	require.NoError(t, env.Store.Insert(context.Background(), u))
	return u
}

func actorOf(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func strPtr(s string) *string { return &s }

func roleChange(r roles.Role) repo.Patch {
	return repo.RolePatch{Role: r}
}
