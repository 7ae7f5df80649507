package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/pkg/cryptox"
	"github.com/edugate/edugate/pkg/idx"
	"github.com/edugate/edugate/pkg/jwtx"
	"github.com/edugate/edugate/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")

	// ErrTokenReuse is returned when a refresh token that was already rotated
	// or revoked is presented again. By the time the caller sees it, every
	// session of the affected account has been revoked.
	ErrTokenReuse = errors.New("refresh_token_reuse")
)

// TokenService issues and verifies the access/refresh token pair. Access and
// refresh tokens are signed with distinct secrets, so neither can stand in for
// the other even if one secret leaks.
type TokenService struct {
	Store store.Store
	Audit *SecurityLogService

	accessSigner    jwtx.Signer
	refreshSigner   jwtx.Signer
	accessVerifier  jwtx.Verifier
	refreshVerifier jwtx.Verifier
}

// TokenConfig carries the signing material and lifetimes for NewTokenService.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewTokenService(st store.Store, audit *SecurityLogService, cfg TokenConfig) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = jwtx.DefaultRefreshTokenTTL
	}

	return &TokenService{
		Store: st,
		Audit: audit,
		accessSigner: jwtx.Signer{
			Secret: cfg.AccessSecret, Issuer: cfg.Issuer, Audience: cfg.Audience, TTL: cfg.AccessTTL,
		},
		refreshSigner: jwtx.Signer{
			Secret: cfg.RefreshSecret, Issuer: cfg.Issuer, Audience: cfg.Audience, TTL: cfg.RefreshTTL,
		},
		accessVerifier: jwtx.Verifier{
			Secret: cfg.AccessSecret, Issuer: cfg.Issuer, Audience: cfg.Audience,
		},
		refreshVerifier: jwtx.Verifier{
			Secret: cfg.RefreshSecret, Issuer: cfg.Issuer, Audience: cfg.Audience,
		},
	}
}

// AccessTTL reports the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessSigner.TTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshSigner.TTL }

// GenerateAccessToken signs a short-lived access token carrying the account's
// current token version.
func (s *TokenService) GenerateAccessToken(u domain.User) (string, error) {
	return s.accessSigner.Sign(jwtx.NewAccessClaims(u.ID, u.Role, u.Name, u.BranchID, u.TokenVersion))
}

// Issue signs a fresh access/refresh pair and persists the refresh token's
// fingerprint so it can later be rotated or revoked.
func (s *TokenService) Issue(ctx context.Context, u domain.User, ip, userAgent string) (domain.TokenPair, error) {
	now := time.Now()

	accessToken, err := s.GenerateAccessToken(u)
	if err != nil {
		return domain.TokenPair{}, err
	}

	jti := idx.New().String()
	refreshToken, err := s.refreshSigner.Sign(jwtx.NewRefreshClaims(u.ID, u.Role, u.TokenVersion, jti))
	if err != nil {
		return domain.TokenPair{}, err
	}

	row := domain.RefreshToken{
		ID:        jti,
		TokenHash: cryptox.FingerprintToken(refreshToken),
		UserID:    u.ID,
		UserRole:  u.Role,
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.refreshSigner.TTL),
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, row); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		RefreshTokenID: jti,
		ExpiresIn:      s.accessSigner.TTL,
	}, nil
}

// VerifyAccessToken validates the signature and standard claims, rejects
// refresh tokens presented as access tokens, then re-checks the account's
// current token version. A storage failure during the re-check fails closed:
// an unverifiable token is an invalid token.
func (s *TokenService) VerifyAccessToken(ctx context.Context, tokenStr string) (jwtx.Claims, error) {
	claims, err := s.accessVerifier.VerifyStrict(tokenStr)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if claims.TokenType == jwtx.TokenTypeRefresh {
		return jwtx.Claims{}, jwtx.ErrInvalidToken
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		return jwtx.Claims{}, jwtx.ErrInvalidToken
	}
	if claims.TokenVersion != u.TokenVersion {
		return jwtx.Claims{}, jwtx.ErrInvalidToken
	}

	return claims, nil
}

// VerifyRefreshToken validates a refresh token's signature and claims without
// consulting the database. Rotation does the database-side checks.
func (s *TokenService) VerifyRefreshToken(tokenStr string) (jwtx.Claims, error) {
	claims, err := s.refreshVerifier.VerifyStrict(tokenStr)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if claims.TokenType != jwtx.TokenTypeRefresh {
		return jwtx.Claims{}, jwtx.ErrInvalidToken
	}
	return claims, nil
}

// Rotate exchanges a refresh token for a new pair. The old row is revoked and
// the new one created in a single transaction, with the old row pointing at
// its replacement.
//
// Presenting a refresh token that was already revoked is treated as replay of
// a stolen credential: every session of the account is revoked and the event
// lands in the audit trail before ErrTokenReuse is returned.
func (s *TokenService) Rotate(ctx context.Context, refreshToken, ip, userAgent string) (domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	claims, err := s.VerifyRefreshToken(refreshToken)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	fp := cryptox.FingerprintToken(refreshToken)
	row, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidRefresh
		}
		return domain.TokenPair{}, err
	}

	if row.RevokedAt != nil {
		l.Warn("revoked refresh token presented again",
			slog.String("user_id", row.UserID),
			slog.String("token_id", row.ID),
		)
		if err := s.RevokeAllUserTokens(ctx, row.UserID); err != nil {
			l.Error("failed to revoke sessions after token reuse",
				slog.String("user_id", row.UserID),
				slog.Any("error", err),
			)
		}
		s.Audit.LogSuspiciousActivity(ctx, row.UserID, row.UserRole, ip, userAgent,
			"revoked refresh token reused, all sessions revoked",
			map[string]any{"token_id": row.ID})
		return domain.TokenPair{}, ErrTokenReuse
	}
	if now.After(row.ExpiresAt) {
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	u, err := s.Store.Users().GetUserByID(ctx, row.UserID)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidRefresh
	}
	if u.Locked(now) {
		return domain.TokenPair{}, ErrAccountLocked
	}
	if claims.TokenVersion != u.TokenVersion {
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	accessToken, err := s.GenerateAccessToken(u)
	if err != nil {
		return domain.TokenPair{}, err
	}

	newID := idx.New().String()
	newRefresh, err := s.refreshSigner.Sign(jwtx.NewRefreshClaims(u.ID, u.Role, u.TokenVersion, newID))
	if err != nil {
		return domain.TokenPair{}, err
	}

	newRow := domain.RefreshToken{
		ID:        newID,
		TokenHash: cryptox.FingerprintToken(newRefresh),
		UserID:    u.ID,
		UserRole:  u.Role,
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.refreshSigner.TTL),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp, newID); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRow)
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:    accessToken,
		RefreshToken:   newRefresh,
		RefreshTokenID: newID,
		ExpiresIn:      s.accessSigner.TTL,
	}, nil
}

// RevokeRefreshToken revokes a single refresh token by its raw value. Used on
// logout; revoking a token that is already dead is not an error.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	fp := cryptox.FingerprintToken(refreshToken)
	err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, fp, "")
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// RevokeAllUserTokens terminates every session of an account: all live
// refresh rows are revoked and the token version is bumped so outstanding
// access tokens stop verifying.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID); err != nil {
			return err
		}
		_, err := tx.Users().IncrementTokenVersion(ctx, userID)
		return err
	})
}

// CleanupExpiredTokens deletes refresh rows past their expiry. Revoked rows
// inside their lifetime are kept for replay detection.
func (s *TokenService) CleanupExpiredTokens(ctx context.Context) error {
	return s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx)
}
