package transport

import (
	"time"

	"github.com/Skotchmaster/restaurant/services/auth/internal/models"
	"github.com/Skotchmaster/restaurant/services/auth/internal/service"
)

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role,omitempty"`
}

func (r SignupRequest) Input() service.SignupInput {
	return service.SignupInput{Email: r.Email, Password: r.Password, FullName: r.FullName, Role: r.Role}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Input() service.LoginInput {
	return service.LoginInput{Email: r.Email, Password: r.Password}
}

type CreateUserRequest = SignupRequest

// UpdateUserRequest leaves absent fields untouched.
type UpdateUserRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (r UpdateUserRequest) Input() service.UpdateUserInput {
	return service.UpdateUserInput{FullName: r.FullName, Email: r.Email, Password: r.Password, Role: r.Role}
}

// UserView is the public shape of a user. Password and refresh hashes are
// never part of it.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

func NewUserView(u *models.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func NewUserViews(users []models.User) []UserView {
	out := make([]UserView, len(users))
	for i := range users {
		out[i] = *NewUserView(&users[i])
	}
	return out
}

type AuthData struct {
	AccessToken string    `json:"accessToken"`
	User        *UserView `json:"user,omitempty"`
}

type AuthResponse struct {
	Message string    `json:"message"`
	Data    *AuthData `json:"data,omitempty"`
}

type PageView struct {
	Items []UserView `json:"items"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
}

func NewPageView(p *service.Page) PageView {
	return PageView{Items: NewUserViews(p.Items), Total: p.Total, Page: p.Page, Size: p.Size}
}

// Envelope wraps every users route response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}
