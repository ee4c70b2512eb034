// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type UpdateUserRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

type UpdateUserTypeRequest struct {
	UserType string `json:"user_type" validate:"required,oneof=VERIFIED EXPERT PHD ORGANIZATION"`
}

type UserResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	UserType      string     `json:"user_type"`
	TrustScore    float64    `json:"trust_score"`
	BanLevel      int        `json:"ban_level"`
	BannedUntil   *time.Time `json:"banned_until,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	UserType string `json:"user_type"`
	Banned   bool   `json:"banned"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		UserType:      u.UserType,
		TrustScore:    u.TrustScore,
		BanLevel:      u.BanLevel,
		BannedUntil:   u.BannedUntil,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, ToUserResponse(&u))
	}
	return responses
}
