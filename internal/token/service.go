// Package token implements the stateless bearer-token subsystem: issuance of
// whitelist-backed tokens, tamper-evident HMAC-SHA256 encoding, strict
// resolution against the stored whitelist row, revocation, and the expiry
// sweep.
package token

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pronym/relay/internal/config"
	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/platform/logger"
	"github.com/pronym/relay/internal/store"
)

// maxEntropyAttempts caps the issuance retry loop so a pathological run of
// collisions cannot block a request indefinitely.
const maxEntropyAttempts = 32

// Service issues, encodes, resolves, and revokes whitelist tokens.
type Service struct {
	tokens   store.TokenStore
	members  store.MemberStore
	signKey  []byte
	ttl      time.Duration
	subject  string
	audience string
	issuer   string
	timeFunc func() time.Time // Injectable for testing
	logger   *slog.Logger
}

// NewService creates a token Service from the auth configuration.
func NewService(
	cfg config.AuthConfig,
	tokens store.TokenStore,
	members store.MemberStore,
	log *slog.Logger,
) (*Service, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		tokens:   tokens,
		members:  members,
		signKey:  []byte(cfg.JWTSecret),
		ttl:      time.Duration(cfg.TokenLifetimeMinutes) * time.Minute,
		subject:  cfg.Subject,
		audience: cfg.Audience,
		issuer:   cfg.Issuer,
		timeFunc: func() time.Time { return time.Now().UTC() },
		logger:   log.With(slog.String("component", "token_service")),
	}, nil
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates and persists a new whitelist row for the member. Entropy is
// generated explicitly here, before the row is constructed; on a collision
// with a concurrently issued token the loop retries with fresh entropy, up
// to maxEntropyAttempts.
func (s *Service) Issue(ctx context.Context, member *domain.AccountMember) (*domain.AuthToken, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for attempt := 0; attempt < maxEntropyAttempts; attempt++ {
		entropy, err := generateEntropy()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token entropy: %w", err)
		}

		tok, err := domain.NewAuthToken(member.ID, entropy)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
		tok.IssuedAt = s.timeFunc()

		err = s.tokens.Create(ctx, tok)
		if err == nil {
			log.Debug("issued whitelist token",
				slog.Int64("member_id", member.ID),
				slog.Int("attempt", attempt+1))
			return tok, nil
		}
		if store.IsDuplicateError(err) {
			log.Debug("token entropy collision, retrying",
				slog.Int("attempt", attempt+1))
			continue
		}
		return nil, err
	}

	log.Error("token entropy retry budget exhausted",
		slog.Int64("member_id", member.ID),
		slog.Int("attempts", maxEntropyAttempts))
	return nil, ErrEntropyExhausted
}

// Encode produces the signed wire form of a whitelist token. The claim set
// is fully determined by the stored row and the configured constants, so
// encoding the same row with the same key is deterministic.
func (s *Service) Encode(tok *domain.AuthToken) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   s.subject,
		Audience:  jwt.ClaimStrings{s.audience},
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(tok.IssuedAt),
		NotBefore: jwt.NewNumericDate(tok.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(tok.ExpiresAt(s.ttl)),
		ID:        strconv.FormatInt(tok.Entropy, 10),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		s.logger.Error("failed to sign token",
			slog.String("error", err.Error()),
			slog.String("signing_method", jwt.SigningMethodHS256.Name))
		return "", fmt.Errorf("failed to sign token with HMAC-SHA256: %w", err)
	}

	return signed, nil
}

// Resolve verifies an encoded token and returns the owning account member.
// The stored whitelist row is authoritative: expiry is re-derived from the
// stored issuance time, and any claim disagreeing with the stored row
// invalidates the token even when the signature checks out. Every failure
// maps to ErrUnauthenticated.
func (s *Service) Resolve(ctx context.Context, encoded string) (*domain.AccountMember, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.timeFunc()

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience(s.audience),
		jwt.WithIssuer(s.issuer),
		jwt.WithSubject(s.subject),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}

	parsed, err := jwt.ParseWithClaims(
		encoded,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.signKey, nil
		},
		parserOpts...)
	if err != nil {
		log.Debug("token resolution failed: parse error",
			slog.String("error", err.Error()))
		return nil, ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		log.Debug("token resolution failed: invalid claims")
		return nil, ErrUnauthenticated
	}

	entropy, err := strconv.ParseInt(claims.ID, 10, 64)
	if err != nil {
		log.Debug("token resolution failed: malformed jti")
		return nil, ErrUnauthenticated
	}

	row, err := s.tokens.GetByEntropy(ctx, entropy)
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("token lookup failed",
				slog.String("error", err.Error()))
		}
		return nil, ErrUnauthenticated
	}

	if row.IsExpired(s.ttl, now) {
		log.Debug("token resolution failed: expired",
			slog.Int64("token_id", row.ID))
		return nil, ErrUnauthenticated
	}

	// The stored row wins over the claim set: iat and nbf must match the
	// stored issuance time exactly, even on a correctly signed token.
	storedUnix := row.IssuedAt.Unix()
	if claims.IssuedAt == nil || claims.IssuedAt.Unix() != storedUnix {
		log.Debug("token resolution failed: iat disagrees with stored row")
		return nil, ErrUnauthenticated
	}
	if claims.NotBefore == nil || claims.NotBefore.Unix() != storedUnix {
		log.Debug("token resolution failed: nbf disagrees with stored row")
		return nil, ErrUnauthenticated
	}

	member, err := s.members.GetByID(ctx, row.MemberID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("member lookup failed",
				slog.String("error", err.Error()))
		}
		return nil, ErrUnauthenticated
	}

	return member, nil
}

// Revoke deletes a single whitelist row.
func (s *Service) Revoke(ctx context.Context, tok *domain.AuthToken) error {
	return s.tokens.Delete(ctx, tok.ID)
}

// RevokeAllForMember deletes every whitelist row belonging to the member.
func (s *Service) RevokeAllForMember(ctx context.Context, member *domain.AccountMember) (int64, error) {
	return s.tokens.DeleteForMember(ctx, member.ID)
}

// RevokeAllForAccount deletes every whitelist row belonging to any member of
// the account.
func (s *Service) RevokeAllForAccount(ctx context.Context, account *domain.Account) (int64, error) {
	return s.tokens.DeleteForAccount(ctx, account.ID)
}

// SweepExpired deletes all rows whose stored issuance time has passed the
// configured lifetime. Returns the number of rows removed.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := s.timeFunc().Add(-s.ttl)
	removed, err := s.tokens.DeleteIssuedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("swept expired tokens",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
	}
	return removed, nil
}

// generateEntropy draws a positive 63-bit value from crypto/rand.
func generateEntropy() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	value := int64(binary.BigEndian.Uint64(buf[:]) >> 1)
	if value == 0 {
		value = 1
	}
	return value, nil
}
