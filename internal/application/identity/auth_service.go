package identity

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/shared"
	"github.com/schoolbill/backend/internal/infrastructure/auth"
)

// AuthService handles login, token refresh, and logout. Failed logins get a
// uniform UNAUTHORIZED response regardless of whether the username exists.
type AuthService struct {
	users     identity.UserRepository
	jwt       *auth.JWTService
	blacklist auth.TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(users identity.UserRepository, jwt *auth.JWTService, blacklist auth.TokenBlacklist, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, jwt: jwt, blacklist: blacklist, logger: logger}
}

// LoginRequest is the payload for password login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the payload for exchanging a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LoginResponse carries the issued token pair plus the authenticated user
type LoginResponse struct {
	User   *UserResponse   `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

var errInvalidCredentials = shared.NewDomainError("UNAUTHORIZED", "Invalid username or password")

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.NewDomainError("UNAUTHORIZED", "Account is deactivated")
	}
	if !user.VerifyPassword(req.Password) {
		s.logger.Warn("failed login attempt", zap.String("username", req.Username))
		return nil, errInvalidCredentials
	}

	tokens, err := s.jwt.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
		SchoolID: user.SchoolID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))
	return &LoginResponse{User: toUserResponse(user), Tokens: tokens}, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. Role and school
// scope are re-read from the user row, so a role change or deactivation
// takes effect at the next refresh at the latest.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*auth.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, shared.NewDomainError("UNAUTHORIZED", "Invalid refresh token")
	}

	blacklisted, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, shared.NewDomainError("UNAUTHORIZED", "Refresh token has been revoked")
	}

	userID, err := claims.GetUserUUID()
	if err != nil {
		return nil, shared.NewDomainError("UNAUTHORIZED", "Invalid refresh token")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("UNAUTHORIZED", "Invalid refresh token")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.NewDomainError("UNAUTHORIZED", "Account is deactivated")
	}

	// The used refresh token is revoked so each one is single-use.
	if err := s.blacklist.AddToBlacklist(ctx, claims.ID, claims.GetRemainingTTL()); err != nil {
		return nil, err
	}

	return s.jwt.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
		SchoolID: user.SchoolID,
	})
}

// Logout revokes both tokens of the session by blacklisting their JTIs for
// their remaining lifetimes. A missing or invalid refresh token is ignored;
// revoking the access token is what ends the session.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.jwt.ValidateAccessToken(accessToken)
	if err != nil {
		return shared.NewDomainError("UNAUTHORIZED", "Invalid access token")
	}
	if err := s.blacklist.AddToBlacklist(ctx, claims.ID, claims.GetRemainingTTL()); err != nil {
		return err
	}

	if refreshToken != "" {
		if refreshClaims, err := s.jwt.ValidateRefreshToken(refreshToken); err == nil {
			if err := s.blacklist.AddToBlacklist(ctx, refreshClaims.ID, refreshClaims.GetRemainingTTL()); err != nil {
				return err
			}
		}
	}

	s.logger.Info("user logged out", zap.String("user_id", claims.UserID))
	return nil
}
