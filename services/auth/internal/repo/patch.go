package repo

import "github.com/Skotchmaster/restaurant/pkg/roles"

// Patch is a typed set of column changes. Only the types in this package
// implement it, so profile edits can never carry a role change.
type Patch interface {
	columns() map[string]any
}

// ProfilePatch changes the fields a user may edit about themselves.
// Nil fields are left alone.
type ProfilePatch struct {
	FullName     *string
	Email        *string
	PasswordHash *string
}

func (p ProfilePatch) columns() map[string]any {
	m := map[string]any{}
	if p.FullName != nil {
		m["full_name"] = *p.FullName
	}
	if p.Email != nil {
		m["email"] = *p.Email
	}
	if p.PasswordHash != nil {
		m["password_hash"] = *p.PasswordHash
	}
	return m
}

func (p ProfilePatch) Empty() bool {
	return len(p.columns()) == 0
}

type RolePatch struct {
	Role roles.Role
}

func (p RolePatch) columns() map[string]any {
	return map[string]any{"role": p.Role}
}

// RefreshHashPatch replaces the stored refresh hash. A nil Hash ends the
// session.
type RefreshHashPatch struct {
	Hash *string
}

func (p RefreshHashPatch) columns() map[string]any {
	if p.Hash == nil {
		return map[string]any{"refresh_token_hash": nil}
	}
	return map[string]any{"refresh_token_hash": *p.Hash}
}
