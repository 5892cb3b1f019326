package service

import (
	"context"

	"github.com/Skotchmaster/restaurant/pkg/directory"
	"github.com/Skotchmaster/restaurant/services/auth/internal/models"
	"github.com/Skotchmaster/restaurant/services/auth/internal/repo"
)

// UserStore is the persistence contract the services run against.
// repo.GormRepo implements it.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByRefreshTokenHash(ctx context.Context, hash string) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	UpdateFields(ctx context.Context, id string, patches ...repo.Patch) (*models.User, error)
	RotateRefreshHash(ctx context.Context, id, prev, next string) error
	DeleteByID(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]models.User, int64, error)
	Search(ctx context.Context, q string, offset, limit int) ([]models.User, int64, error)
}

// Directory is an optional search index of user profiles.
type Directory interface {
	IndexUser(ctx context.Context, doc directory.UserDoc) error
	RemoveUser(ctx context.Context, id string) error
	SearchUsers(ctx context.Context, query string, from, size int) (int64, []directory.UserDoc, error)
}
