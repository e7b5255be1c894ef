package invite

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/petmatch/clinic-api/internal/handler"
	"github.com/petmatch/clinic-api/internal/handler/prometheus"
	"github.com/petmatch/clinic-api/internal/middleware"
	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/service/account"
	"github.com/petmatch/clinic-api/internal/service/invite"
	"github.com/petmatch/clinic-api/internal/service/notifier"
)

type Handler struct {
	invites       invite.Manager
	accounts      account.AccountService
	notifications notifier.Notifier
	metrics       *prometheus.Handler
}

func NewHandler(invites invite.Manager, accounts account.AccountService, notifications notifier.Notifier, metrics *prometheus.Handler) *Handler {
	return &Handler{invites: invites, accounts: accounts, notifications: notifications, metrics: metrics}
}

func (h *Handler) RegisterRoutes(authed *gin.RouterGroup) {
	authed.GET("/invites", h.List)
	authed.GET("/invites/:token", h.Get)
	authed.POST("/invites/:token/accept", h.Accept)
	authed.POST("/invites/:token/decline", h.Decline)
	authed.GET("/notifications", h.Notifications)
}

// List returns the caller's invites, sweeping for newly matching pending ones
// first.
func (h *Handler) List(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	acc, err := h.accounts.Get(c.Request.Context(), accountID)
	if err != nil {
		c.Error(err)
		return
	}

	views, err := h.invites.ListForAccount(c.Request.Context(), acc, model.InviteStatus(c.Query("status")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(views))
}

func (h *Handler) Get(c *gin.Context) {
	view, err := h.invites.GetView(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) Accept(c *gin.Context) {
	h.respond(c, true)
}

func (h *Handler) Decline(c *gin.Context) {
	h.respond(c, false)
}

func (h *Handler) respond(c *gin.Context, accept bool) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	view, err := h.invites.Respond(c.Request.Context(), accountID, c.Param("token"), accept)
	if err != nil {
		c.Error(err)
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveInviteEvent(string(view.Status))
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) Notifications(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	list, err := h.notifications.ListForUser(c.Request.Context(), accountID, unreadOnly)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func currentAccountID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString(middleware.ContextAccountID))
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid account identity"))
		return uuid.Nil, false
	}
	return id, true
}
