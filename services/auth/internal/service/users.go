package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/restaurant/pkg/events"
	"github.com/Skotchmaster/restaurant/pkg/hash"
	"github.com/Skotchmaster/restaurant/pkg/logging"
	"github.com/Skotchmaster/restaurant/pkg/roles"
	"github.com/Skotchmaster/restaurant/pkg/util"
	"github.com/Skotchmaster/restaurant/services/auth/internal/models"
	"github.com/Skotchmaster/restaurant/services/auth/internal/repo"
)

// Actor is the authenticated caller of a user management operation.
type Actor struct {
	ID   string
	Role roles.Role
}

type Page struct {
	Items []models.User
	Total int64
	Page  int
	Size  int
}

type UsersService struct {
	Store  UserStore
	Hasher hash.Hasher
	Notifier
}

// Create registers an identity on behalf of actor.
func (s *UsersService) Create(ctx context.Context, actor Actor, in CreateUserInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.create", "actor_id", actor.ID)

	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	role := roles.Default
	if in.Role != "" {
		role = roles.Role(in.Role)
		if !roles.CanActOn(actor.Role, role) {
			l.Warn("create_user_denied", "status", 403, "actor_role", string(actor.Role), "role", string(role))
			return nil, fmt.Errorf("role %s cannot create a user with role %s: %w", actor.Role, role, ErrForbidden)
		}
	}

	pwHash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		l.Error("create_user_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := s.Store.Insert(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, fmt.Errorf("email %s: %w", in.Email, ErrConflict)
		}
		l.Error("create_user_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Info("user_created", "user_id", user.ID, "role", string(user.Role))
	s.publish(ctx, events.UserCreated, user, actor.ID, "")
	s.index(ctx, user)
	return user, nil
}

func (s *UsersService) List(ctx context.Context, page, size int) (*Page, error) {
	offset, limit := util.Calculate(page, size)
	items, total, err := s.Store.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Page: offset/limit + 1, Size: limit}, nil
}

// Search uses the directory when one is configured and falls back to the
// store when it is absent or failing.
func (s *UsersService) Search(ctx context.Context, q string, page, size int) (*Page, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("query is required: %w", ErrValidation)
	}
	offset, limit := util.Calculate(page, size)
	p := &Page{Page: offset/limit + 1, Size: limit}

	if s.Directory != nil {
		total, docs, err := s.Directory.SearchUsers(ctx, q, offset, limit)
		if err == nil {
			p.Total = total
			p.Items = make([]models.User, len(docs))
			for i, d := range docs {
				p.Items[i] = models.User{ID: d.ID, Email: d.Email, FullName: d.FullName, Role: roles.Role(d.Role)}
			}
			return p, nil
		}
		logging.FromContext(ctx).Warn("directory_search_failed", "reason", "falling back to store", "error", err)
	}

	items, total, err := s.Store.Search(ctx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	p.Items, p.Total = items, total
	return p, nil
}

func (s *UsersService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

// UpdateSelf edits the caller's own profile. Roles cannot be changed here.
func (s *UsersService) UpdateSelf(ctx context.Context, actor Actor, in UpdateUserInput) (*models.User, error) {
	if in.Role != nil {
		return nil, fmt.Errorf("cannot update role through this endpoint: %w", ErrValidation)
	}
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	patch, err := s.profilePatch(in)
	if err != nil {
		return nil, err
	}
	user, err := s.Store.UpdateFields(ctx, actor.ID, patch)
	if err != nil {
		return nil, storeError(actor.ID, err)
	}
	s.publish(ctx, events.UserUpdated, user, actor.ID, "")
	s.index(ctx, user)
	return user, nil
}

func (s *UsersService) DeleteSelf(ctx context.Context, actor Actor) error {
	if err := s.Store.DeleteByID(ctx, actor.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("user %s: %w", actor.ID, ErrNotFound)
		}
		return err
	}
	logging.FromContext(ctx).Info("user_deleted", "user_id", actor.ID, "self", true)
	s.publish(ctx, events.UserDeleted, &models.User{ID: actor.ID, Role: actor.Role}, actor.ID, "")
	s.unindex(ctx, actor.ID)
	return nil
}

// Update edits another identity. Profile fields need CanActOn; a role change
// additionally needs CanAssignRole.
func (s *UsersService) Update(ctx context.Context, actor Actor, id string, in UpdateUserInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.update", "actor_id", actor.ID, "user_id", id)

	if id == actor.ID {
		return nil, fmt.Errorf("use the /me endpoint to update the current user: %w", ErrValidation)
	}
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	target, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !roles.CanActOn(actor.Role, target.Role) {
		l.Warn("update_user_denied", "status", 403, "actor_role", string(actor.Role), "target_role", string(target.Role))
		return nil, fmt.Errorf("role %s cannot update a user with role %s: %w", actor.Role, target.Role, ErrForbidden)
	}

	var desired roles.Role
	if in.Role != nil {
		desired = roles.Role(*in.Role)
		if !roles.CanAssignRole(actor.Role, target.Role, desired) {
			l.Warn("update_role_denied", "status", 403, "actor_role", string(actor.Role), "target_role", string(target.Role), "desired", string(desired))
			return nil, fmt.Errorf("role %s cannot move a %s to %s: %w", actor.Role, target.Role, desired, ErrForbidden)
		}
	}

	var patches []repo.Patch
	if in.hasProfile() {
		patch, err := s.profilePatch(in)
		if err != nil {
			return nil, err
		}
		patches = append(patches, patch)
	}
	roleChanged := desired != "" && desired != target.Role
	if roleChanged {
		patches = append(patches, repo.RolePatch{Role: desired})
	}
	if len(patches) == 0 {
		return target, nil
	}

	user, err := s.Store.UpdateFields(ctx, id, patches...)
	if err != nil {
		return nil, storeError(id, err)
	}

	if in.hasProfile() {
		s.publish(ctx, events.UserUpdated, user, actor.ID, "")
	}
	if roleChanged {
		l.Info("role_changed", "from", string(target.Role), "to", string(desired))
		s.publish(ctx, events.UserRoleChanged, user, actor.ID, string(target.Role))
	}

	s.index(ctx, user)
	return user, nil
}

func (s *UsersService) Delete(ctx context.Context, actor Actor, id string) error {
	l := logging.FromContext(ctx).With("svc", "users.delete", "actor_id", actor.ID, "user_id", id)

	if id == actor.ID {
		return fmt.Errorf("use the /me endpoint to delete your account: %w", ErrForbidden)
	}

	target, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == roles.Admin {
		l.Warn("delete_user_denied", "status", 403, "reason", "admin target")
		return fmt.Errorf("cannot delete admin user: %w", ErrForbidden)
	}
	if !roles.CanActOn(actor.Role, target.Role) {
		l.Warn("delete_user_denied", "status", 403, "actor_role", string(actor.Role), "target_role", string(target.Role))
		return fmt.Errorf("role %s cannot delete a user with role %s: %w", actor.Role, target.Role, ErrForbidden)
	}

	if err := s.Store.DeleteByID(ctx, id); err != nil {
		return storeError(id, err)
	}

	l.Info("user_deleted")
	s.publish(ctx, events.UserDeleted, target, actor.ID, "")
	s.unindex(ctx, id)
	return nil
}

func (s *UsersService) profilePatch(in UpdateUserInput) (repo.ProfilePatch, error) {
	patch := repo.ProfilePatch{FullName: in.FullName}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		patch.Email = &email
	}
	if in.Password != nil {
		pwHash, err := s.Hasher.Hash(*in.Password)
		if err != nil {
			return repo.ProfilePatch{}, err
		}
		patch.PasswordHash = &pwHash
	}
	return patch, nil
}

func storeError(id string, err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	case errors.Is(err, repo.ErrDuplicateEmail):
		return fmt.Errorf("email already registered: %w", ErrConflict)
	default:
		return err
	}
}
