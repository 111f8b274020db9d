package api

import (
	"github.com/nekogravitycat/hotel-pms-backend/internal/auth"
)

// LoginRequest is the payload for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// OperatorResponse is the shape of operator data returned in API responses.
type OperatorResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResponse is the response for POST /v1/auth/login.
type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	Operator    OperatorResponse `json:"operator"`
}

// MeResponse is the response for GET /v1/me.
type MeResponse struct {
	Operator OperatorResponse `json:"operator"`
}

func NewOperatorResponse(op *auth.Operator) OperatorResponse {
	return OperatorResponse{
		ID:    op.ID,
		Email: op.Email,
		Role:  string(op.Role),
	}
}
