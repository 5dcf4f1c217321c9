// Package api exposes the gamification core over HTTP with gin.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/leaderboard"
	"gamification_service/internal/ledger"
	"gamification_service/internal/notify"
	"gamification_service/internal/session"
)

type Services struct {
	Customers   *customer.Service
	Ledger      *ledger.Service
	Challenges  *challenge.Service
	Tracker     *challenge.Tracker
	Ranker      *leaderboard.Ranker
	Sessions    *session.Service
	Coordinator *session.Coordinator
	Hub         *notify.Hub
}

type Handler struct {
	svc    Services
	logger *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Services, logger *slog.Logger) *gin.Engine {
	h := &Handler{svc: svc, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	customers := r.Group("/customers")
	customers.POST("", h.registerCustomer)
	customers.GET("/:id", h.getCustomer)
	customers.DELETE("/:id", h.deleteCustomer)
	customers.GET("/:id/ledger", h.ledgerHistory)
	customers.POST("/:id/redeem", h.redeem)
	customers.GET("/:id/challenges", h.challengeProgress)
	customers.POST("/:id/social", h.socialAction)
	customers.GET("/:id/updates", h.updates)

	r.POST("/sessions", h.startSession)
	r.GET("/sessions/:id", h.getSession)
	r.POST("/sessions/:id/complete", h.completeSession)

	r.POST("/challenges", h.createChallenge)
	r.POST("/challenges/:id/join", h.joinChallenge)

	r.GET("/leaderboards/:merchant_id/:game_type", h.leaderboard)

	return r
}

// writeError answers with the status of err's code. Unknown errors are
// logged and their text is not sent to the caller.
func (h *Handler) writeError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	body := gin.H{"code": code}

	var appErr *apperrors.Error
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		body["error"] = "internal error"
	} else {
		body["error"] = err.Error()
		if errors.As(err, &appErr) && len(appErr.Metadata) > 0 {
			body["metadata"] = appErr.Metadata
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": apperrors.CodeValidation, "error": err.Error()})
}
