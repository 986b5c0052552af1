package api

import "github.com/dmitrijs2005/credkeeper/internal/server/models"

// TokenTypeBearer is the only token type credkeeper issues.
const TokenTypeBearer = "Bearer"

func NewUserResponse(u *models.User) UserResponse {
	r := UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
		HasPassword:   u.HasPassword(),
		CreatedAt:     u.CreatedAt,
	}
	if u.OAuthProvider != nil {
		r.OAuthProvider = *u.OAuthProvider
	}
	return r
}

func NewUserListResponse(p *models.UserPage) UserListResponse {
	users := make([]UserResponse, 0, len(p.Users))
	for _, u := range p.Users {
		users = append(users, NewUserResponse(u))
	}
	return UserListResponse{
		Users:      users,
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
		HasNext:    p.HasNext,
		HasPrev:    p.HasPrev,
	}
}
