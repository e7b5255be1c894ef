package model

import "github.com/google/uuid"

type TokenClaims struct {
	AccountID uuid.UUID
	Email     string
	ClinicID  *uuid.UUID
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
