// This file implements UserService, which handles account creation and
// login, minting the bearer tokens interviewing devices authenticate with.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"casesync/internal/common"
	"casesync/internal/cryptox"
	"casesync/internal/server/auth"
	"casesync/internal/server/config"
	"casesync/internal/server/models"
	"casesync/internal/server/repositories/repomanager"
)

// Token is a minted access token together with its expiry moment.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// UserService provides authentication-related operations:
// - Register: create users
// - Login: verify credentials and mint tokens
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Register creates a new user with a fresh salt and an argon2id hash of the
// given password.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	salt, err := cryptox.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("error generating salt: %w", err)
	}

	user := &models.User{
		UserName:     username,
		Salt:         salt,
		PasswordHash: cryptox.HashPassword([]byte(password), salt),
	}

	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login verifies the password against the stored hash and, on success,
// returns a bearer token. Unknown users and wrong passwords are not
// distinguished.
func (s *UserService) Login(ctx context.Context, username, password string) (*Token, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if !cryptox.VerifyPassword([]byte(password), user.Salt, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, user.UserName, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &Token{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(s.accessTokenValidityDuration),
	}, nil
}
