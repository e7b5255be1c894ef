package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/petmatch/clinic-api/internal/handler"
	"github.com/petmatch/clinic-api/internal/middleware"
	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/service/account"
	"github.com/petmatch/clinic-api/pkg/auth"
)

type Handler struct {
	accounts account.AccountService
	jwt      auth.JWTService
}

func NewHandler(accounts account.AccountService, jwt auth.JWTService) *Handler {
	return &Handler{accounts: accounts, jwt: jwt}
}

func (h *Handler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.POST("/accounts/register", h.Register)
	public.POST("/accounts/login", h.Login)
	authed.GET("/accounts/me", h.Me)
	authed.PUT("/accounts/me/contact", h.UpdateContact)
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	acc, err := h.accounts.Register(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	tokens, err := h.issueTokens(acc)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"account": acc,
		"tokens":  tokens,
	}))
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	acc, err := h.accounts.Login(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	tokens, err := h.issueTokens(acc)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"account": acc,
		"tokens":  tokens,
	}))
}

func (h *Handler) Me(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	acc, err := h.accounts.Get(c.Request.Context(), accountID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(acc))
}

func (h *Handler) UpdateContact(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	var req model.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	acc, err := h.accounts.UpdateContact(c.Request.Context(), accountID, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(acc))
}

func (h *Handler) issueTokens(acc *model.Account) (*model.TokenResponse, error) {
	claims := &model.TokenClaims{AccountID: acc.ID, Email: acc.Email}
	access, err := h.jwt.GenerateAccessToken(claims)
	if err != nil {
		return nil, err
	}
	refresh, err := h.jwt.GenerateRefreshToken(claims)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{AccessToken: access, RefreshToken: refresh}, nil
}

func currentAccountID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString(middleware.ContextAccountID))
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid account identity"))
		return uuid.Nil, false
	}
	return id, true
}
