package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims carried by both token kinds
type Claims struct {
	TokenType string `json:"token_type"`
	Username  string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 access and refresh tokens
type JWTIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewJWTIssuer creates an issuer with the given secret and lifetimes
func NewJWTIssuer(secret string, accessTTL, refreshTTL time.Duration) *JWTIssuer {
	return &JWTIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue returns a fresh token pair for user
func (j *JWTIssuer) Issue(user *entity.User) (*port.TokenPair, error) {
	access, err := j.sign(user.ID, user.Username, tokenTypeAccess, j.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := j.sign(user.ID, user.Username, tokenTypeRefresh, j.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &port.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new access token
func (j *JWTIssuer) Refresh(refreshToken string) (string, error) {
	claims, err := j.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return "", err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad subject", entity.ErrUnauthenticated)
	}
	return j.sign(userID, claims.Username, tokenTypeAccess, j.accessTTL)
}

// VerifyAccess returns the user id of a valid access token
func (j *JWTIssuer) VerifyAccess(accessToken string) (int64, error) {
	claims, err := j.parse(accessToken, tokenTypeAccess)
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", entity.ErrUnauthenticated)
	}
	return userID, nil
}

func (j *JWTIssuer) sign(userID int64, username, tokenType string, ttl time.Duration) (string, error) {
	now := j.now()
	claims := Claims{
		TokenType: tokenType,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (j *JWTIssuer) parse(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", entity.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrUnauthenticated, err)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: wrong token type", entity.ErrUnauthenticated)
	}
	return claims, nil
}

var _ port.TokenIssuer = (*JWTIssuer)(nil)
