// Package roles holds the role hierarchy and the two policy checks every
// mutating user operation goes through.
package roles

import (
	"errors"
	"fmt"
)

type Role string

const (
	Admin    Role = "admin"
	Manager  Role = "manager"
	Customer Role = "customer"
	Waiter   Role = "waiter"
	Cook     Role = "cook"
	Cashier  Role = "cashier"
)

// Default is assigned when no role is requested.
const Default = Customer

var ErrUnknownRole = errors.New("unknown role")

// levels is read-only after init.
var levels = map[Role]int{
	Admin:    3,
	Manager:  2,
	Customer: 1,
	Waiter:   1,
	Cook:     1,
	Cashier:  1,
}

func All() []Role {
	return []Role{Admin, Manager, Customer, Waiter, Cook, Cashier}
}

func Parse(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownRole)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := levels[r]
	return ok
}

// Level returns 0 for unknown roles.
func (r Role) Level() int {
	return levels[r]
}

// Privileged reports whether the role ranks above the lowest tier.
func (r Role) Privileged() bool {
	return r.Level() > levels[Default]
}

func (r Role) String() string { return string(r) }

// CanActOn decides whether actor may update or delete an identity holding
// target. Managers never act on customers.
func CanActOn(actor, target Role) bool {
	if !actor.Valid() || !target.Valid() {
		return false
	}
	if actor == Admin {
		return true
	}
	if actor == Manager && target == Customer {
		return false
	}
	return target.Level() < actor.Level()
}

// CanAssignRole decides whether actor may move an identity currently holding
// targetCurrent to desired. Non-admins can only hand out roles strictly below
// their own level, and only to identities strictly below them.
func CanAssignRole(actor, targetCurrent, desired Role) bool {
	if !actor.Valid() || !targetCurrent.Valid() || !desired.Valid() {
		return false
	}
	if actor == Admin {
		return true
	}
	if actor == Manager && targetCurrent == Customer {
		return false
	}
	if targetCurrent.Level() >= actor.Level() {
		return false
	}
	return desired.Level() < actor.Level()
}
