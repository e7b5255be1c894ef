package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/petmatch/clinic-api/internal/model"
)

// JWTService issues and validates the bearer tokens used by the mobile app
// and the clinic dashboard.
type JWTService interface {
	GenerateAccessToken(claims *model.TokenClaims) (string, error)
	GenerateRefreshToken(claims *model.TokenClaims) (string, error)
	ValidateToken(token string) (*model.TokenClaims, error)
	ValidateRefreshToken(token string) (*model.TokenClaims, error)
}

type jwtService struct {
	secret        []byte
	refreshSecret []byte
	expiry        time.Duration
}

func NewJWTService(secret, refreshSecret string, expiry time.Duration) JWTService {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &jwtService{
		secret:        []byte(secret),
		refreshSecret: []byte(refreshSecret),
		expiry:        expiry,
	}
}

func (s *jwtService) GenerateAccessToken(claims *model.TokenClaims) (string, error) {
	return s.sign(claims, s.secret, s.expiry)
}

func (s *jwtService) GenerateRefreshToken(claims *model.TokenClaims) (string, error) {
	return s.sign(claims, s.refreshSecret, 30*24*time.Hour)
}

func (s *jwtService) sign(claims *model.TokenClaims, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	mapClaims := jwt.MapClaims{
		"sub":   claims.AccountID.String(),
		"email": claims.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if claims.ClinicID != nil {
		mapClaims["clinic_id"] = claims.ClinicID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) ValidateToken(token string) (*model.TokenClaims, error) {
	return s.validate(token, s.secret)
}

func (s *jwtService) ValidateRefreshToken(token string) (*model.TokenClaims, error) {
	return s.validate(token, s.refreshSecret)
}

func (s *jwtService) validate(tokenStr string, secret []byte) (*model.TokenClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, _ := mapClaims["sub"].(string)
	accountID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	claims := &model.TokenClaims{AccountID: accountID}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if raw, ok := mapClaims["clinic_id"].(string); ok {
		if clinicID, err := uuid.Parse(raw); err == nil {
			claims.ClinicID = &clinicID
		}
	}
	return claims, nil
}
