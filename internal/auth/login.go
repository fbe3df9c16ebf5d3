package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// ErrBadCredentials is returned by Login for unknown emails and wrong passwords alike.
var ErrBadCredentials = errors.New("incorrect email or password")

// Authenticator exchanges email/password for an access token.
type Authenticator struct {
	Users  core.UserDirectory
	Hasher *PasswordHasher
	Tokens *JWTManager
}

func (a *Authenticator) Login(ctx context.Context, email, password string) (string, error) {
	user, err := a.Users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return "", ErrBadCredentials
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	if !a.Hasher.Verify(password, user.PasswordHash) {
		return "", ErrBadCredentials
	}
	return a.Tokens.Issue(user)
}
