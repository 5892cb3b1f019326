package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/pkg/roles"
	"github.com/Skotchmaster/restaurant/services/auth/internal/models"
)

func (r *GormRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *GormRepo) FindByRefreshTokenHash(ctx context.Context, hash string) (*models.User, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return r.first(ctx, "refresh_token_hash = ?", hash)
}

func (r *GormRepo) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Insert creates u, filling in the id and default role when unset.
func (r *GormRepo) Insert(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = roles.Default
	}
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("insert %s: %w", u.Email, ErrDuplicateEmail)
		}
		return err
	}
	return nil
}

// UpdateFields applies every patch in one UPDATE inside a transaction and
// returns the updated row. Either all patches land or none do.
func (r *GormRepo) UpdateFields(ctx context.Context, id string, patches ...Patch) (*models.User, error) {
	cols := map[string]any{}
	for _, p := range patches {
		for k, v := range p.columns() {
			cols[k] = v
		}
	}
	if len(cols) == 0 {
		return r.FindByID(ctx, id)
	}
	cols["updated_at"] = time.Now().UTC()

	var user models.User
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEmail
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", id).First(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RotateRefreshHash swaps prev for next only if prev is still the stored
// hash. Losing that race yields ErrStaleRefreshToken.
func (r *GormRepo) RotateRefreshHash(ctx context.Context, id, prev, next string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token_hash = ?", id, prev).
		Updates(map[string]any{
			"refresh_token_hash": next,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRefreshToken
	}
	return nil
}

func (r *GormRepo) DeleteByID(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) List(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	tx := r.DB.WithContext(ctx).Model(&models.User{}).Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	users := make([]models.User, 0, limit)
	if err := tx.Order("created_at ASC, id ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Search matches q case-insensitively against email and full name.
func (r *GormRepo) Search(ctx context.Context, q string, offset, limit int) ([]models.User, int64, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.User{}, 0, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	where := `LOWER(email) LIKE ? ESCAPE '\' OR LOWER(full_name) LIKE ? ESCAPE '\'`

	tx := r.DB.WithContext(ctx).Model(&models.User{}).Where(where, pattern, pattern).Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	users := make([]models.User, 0, limit)
	if err := tx.Order("email ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
