package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/auth"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/response"
)

type AuthHandler struct {
	operators  *auth.Directory
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

func NewAuthHandler(operators *auth.Directory, jwtManager *auth.JWTManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		operators:  operators,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

//
// POST /v1/auth/login
//

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	op, err := h.operators.Authenticate(req.Email, req.Password)
	if err != nil {
		h.logger.Info("login rejected", zap.String("email", req.Email))
		response.Error(c, err)
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(op)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		Operator:    NewOperatorResponse(op),
	})
}

//
// GET /v1/me
//

func (h *AuthHandler) Me(c *gin.Context) {
	id := auth.GetOperatorID(c)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "kind": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		Operator: NewOperatorResponse(&auth.Operator{
			ID:    id,
			Email: auth.GetOperatorEmail(c),
			Role:  auth.GetOperatorRole(c),
		}),
	})
}
