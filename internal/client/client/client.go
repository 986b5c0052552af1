package client

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/api"
)

type Client interface {
	Close() error
	Register(ctx context.Context, email string, password []byte, firstName, lastName string) error
	Login(ctx context.Context, email string, password []byte) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.UserResponse, error)
	Ping(ctx context.Context) error
	LoggedIn() bool
}
