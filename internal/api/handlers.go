package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gamification_service/internal/apperrors"
	"gamification_service/internal/challenge"
	"gamification_service/internal/customer"
	"gamification_service/internal/leaderboard"
	"gamification_service/internal/ledger"
	"gamification_service/internal/session"
)

func (h *Handler) registerCustomer(c *gin.Context) {
	var req customer.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	cust, err := h.svc.Customers.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cust.Summary())
}

func (h *Handler) getCustomer(c *gin.Context) {
	cust, err := h.svc.Customers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cust.Summary())
}

func (h *Handler) deleteCustomer(c *gin.Context) {
	if err := h.svc.Customers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ledgerHistory(c *gin.Context) {
	q := ledger.Query{}
	for _, t := range c.QueryArray("type") {
		tt := ledger.TransactionType(t)
		if !tt.Valid() {
			h.writeError(c, apperrors.Validation("unknown transaction type "+strconv.Quote(t)))
			return
		}
		q.Types = append(q.Types, tt)
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		q.Since = since
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(c, apperrors.Validation("limit must be a non-negative integer"))
			return
		}
		q.Limit = n
	}

	entries, err := h.svc.Ledger.History(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) redeem(c *gin.Context) {
	var req ledger.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	entry, err := h.svc.Ledger.Redeem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) challengeProgress(c *gin.Context) {
	rows, err := h.svc.Challenges.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if rows == nil {
		rows = []challenge.UserChallenge{}
	}
	c.JSON(http.StatusOK, gin.H{"challenges": rows})
}

type socialRequest struct {
	MerchantID string `json:"merchant_id" binding:"required"`
}

func (h *Handler) socialAction(c *gin.Context) {
	var req socialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	deltas, err := h.svc.Tracker.OnSocialAction(c.Request.Context(), c.Param("id"), req.MerchantID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if deltas == nil {
		deltas = []challenge.Delta{}
	}
	c.JSON(http.StatusOK, gin.H{"challenges": deltas})
}

func (h *Handler) startSession(c *gin.Context) {
	var req session.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	sess, err := h.svc.Sessions.Start(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) getSession(c *gin.Context) {
	sess, err := h.svc.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// completeSession processes a completion event. A redelivery answers 200 with
// duplicate set.
func (h *Handler) completeSession(c *gin.Context) {
	var ev session.Completed
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.badRequest(c, err)
		return
	}
	ev.SessionID = c.Param("id")

	res, err := h.svc.Coordinator.Process(c.Request.Context(), ev)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) createChallenge(c *gin.Context) {
	var req challenge.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	ch, err := h.svc.Challenges.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

type joinRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
}

func (h *Handler) joinChallenge(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	uc, err := h.svc.Challenges.Join(c.Request.Context(), req.CustomerID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, uc)
}

func (h *Handler) leaderboard(c *gin.Context) {
	period := leaderboard.PeriodType(c.DefaultQuery("period", string(leaderboard.PeriodAllTime)))
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(c, apperrors.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := h.svc.Ranker.Top(c.Request.Context(), c.Param("merchant_id"), c.Param("game_type"), period, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "entries": entries})
}
