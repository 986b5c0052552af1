package grpc

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/api"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func tokenResponse(p *services.TokenPair) *api.TokenResponse {
	return &api.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    api.TokenTypeBearer,
		ExpiresIn:    p.ExpiresIn,
	}
}

// toStatus maps a service failure to a gRPC status. Clients only ever see
// the kind's public message.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	kind := services.KindOf(err)

	var code codes.Code
	switch kind {
	case services.InvalidCredentials, services.TokenExpired, services.TokenInvalid, services.SessionNotFound:
		code = codes.Unauthenticated
	case services.AccountAlreadyExists:
		code = codes.AlreadyExists
	case services.MissingOAuthEmail:
		code = codes.InvalidArgument
	case services.StorageUnavailable:
		code = codes.Unavailable
	case services.NotFound:
		code = codes.NotFound
	default:
		code = codes.Internal
	}

	if code == codes.Internal || code == codes.Unavailable {
		s.logger.Error(ctx, op+" failed", "error", err)
	}

	return status.Error(code, kind.Message())
}

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.TokenResponse, error) {

	if err := req.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	pair, err := s.auth.Register(ctx, services.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "register", err)
	}

	return tokenResponse(pair), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.TokenResponse, error) {

	if err := req.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	pair, err := s.auth.Login(ctx, services.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		return nil, s.toStatus(ctx, "login", err)
	}

	return tokenResponse(pair), nil
}

func (s *GRPCServer) OAuthCallback(ctx context.Context, req *api.OAuthCallbackRequest) (*api.TokenResponse, error) {

	if err := req.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	pair, err := s.auth.OAuthCallback(ctx, services.OAuthProfile{
		Provider:      req.Provider,
		ProviderID:    req.ProviderID,
		Email:         req.Email,
		EmailVerified: req.EmailVerified,
		GivenName:     req.GivenName,
		FamilyName:    req.FamilyName,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "oauth callback", err)
	}

	return tokenResponse(pair), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.TokenResponse, error) {

	if err := req.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	pair, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, "refresh", err)
	}

	return tokenResponse(pair), nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.LogoutRequest) (*api.LogoutResponse, error) {

	p, ok := principalFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if err := req.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	if err := s.auth.Logout(ctx, p.UserID, req.RefreshToken); err != nil {
		return nil, s.toStatus(ctx, "logout", err)
	}

	return &api.LogoutResponse{}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *api.MeRequest) (*api.UserResponse, error) {

	p, ok := principalFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	u, err := s.users.GetProfile(ctx, p.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, "get profile", err)
	}

	resp := api.NewUserResponse(u)
	return &resp, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {

	return &api.PingResponse{Status: "OK"}, nil

}
