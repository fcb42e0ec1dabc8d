package httpapi

import (
	"errors"
	"net/http"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/audit"
	"reflectcall-platform/internal/auth"
	"reflectcall-platform/internal/calls"
	"reflectcall-platform/internal/journal"
	"reflectcall-platform/internal/rbac"
	"reflectcall-platform/internal/reporting"
	"reflectcall-platform/internal/session"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Attempts  *attempt.Service
	Sessions  session.Store
	Entries   journal.Store
	Reporting *reporting.Service
	Live      *calls.Registry
	Audit     *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Attempts ---

type createAttemptRequest struct {
	Date string `json:"date"`
}

// CreateAttempt registers a manual attempt for the calling user.
func (h Handlers) CreateAttempt(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	var req createAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	att, err := h.Attempts.CreateAttempt(c.Request.Context(), userID, req.Date, attempt.SourceManual)
	if err != nil {
		c.AbortWithStatusJSON(attemptErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	if h.Audit != nil {
		_ = h.Audit.LogAttemptCreated(c.Request.Context(), userID, att.ID, string(attempt.SourceManual))
	}
	c.JSON(http.StatusCreated, att)
}

func (h Handlers) DeleteAttempt(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	date := c.Param("date")
	if err := h.Attempts.DeleteAttempt(c.Request.Context(), userID, date); err != nil {
		c.AbortWithStatusJSON(attemptErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListAttempts(c *gin.Context) {
	userID := h.targetUserID(c)
	if userID == "" {
		return
	}
	out, err := h.Attempts.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(attemptErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": out})
}

// RequeueAttempt puts a missed or pending attempt back on the dispatch
// queue. Operator-only.
func (h Handlers) RequeueAttempt(c *gin.Context) {
	id := c.Param("attempt_id")
	att, err := h.Attempts.RequeueForRetry(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(attemptErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, att)
}

// QueueContents exposes pending queue membership for operators.
func (h Handlers) QueueContents(c *gin.Context) {
	members, err := h.Attempts.QueueMembers(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members, "length": len(members)})
}

// --- Sessions ---

func (h Handlers) GetSessionByAttempt(c *gin.Context) {
	s, err := h.Sessions.GetByAttempt(c.Request.Context(), c.Param("attempt_id"))
	if err != nil {
		c.AbortWithStatusJSON(sessionErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	snap := s.Snapshot()
	if !h.mayAccess(c, snap.UserID) {
		return
	}
	c.JSON(http.StatusOK, snap)
}

// --- Journal entries ---

func (h Handlers) ListEntries(c *gin.Context) {
	userID := h.targetUserID(c)
	if userID == "" {
		return
	}
	out, err := h.Entries.ListByUser(c.Request.Context(), userID, 50)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

func (h Handlers) GetEntry(c *gin.Context) {
	e, err := h.Entries.Get(c.Request.Context(), c.Param("entry_id"))
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !h.mayAccess(c, e.UserID) {
		return
	}
	c.JSON(http.StatusOK, e)
}

// --- Reporting ---

func (h Handlers) AttemptsSummary(c *gin.Context) {
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reporting.AttemptsSummary(c.Request.Context(), reporting.AttemptsSummaryRequest{
		UserID: c.Query("user_id"),
		Range:  rng,
	})
	if err != nil {
		c.AbortWithStatusJSON(reportingErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SessionsSummary(c *gin.Context) {
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reporting.SessionsSummary(c.Request.Context(), reporting.SessionsSummaryRequest{
		UserID: c.Query("user_id"),
		Range:  rng,
	})
	if err != nil {
		c.AbortWithStatusJSON(reportingErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Live calls ---

func (h Handlers) LiveCalls(c *gin.Context) {
	recs := h.Live.Active()
	c.JSON(http.StatusOK, gin.H{"calls": recs, "count": len(recs)})
}

// --- helpers ---

// targetUserID resolves whose data a read targets: operators may pass
// ?user_id, everyone else gets their own. Writes an error response and
// returns "" when identity is missing.
func (h Handlers) targetUserID(c *gin.Context) string {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return ""
	}
	if q := c.Query("user_id"); q != "" && q != userID {
		role, _ := auth.Role(c.Request.Context())
		if role != rbac.RoleOperator && !rbac.IsSuperAdmin(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return ""
		}
		return q
	}
	return userID
}

// mayAccess enforces owner-or-operator on a loaded resource.
func (h Handlers) mayAccess(c *gin.Context, ownerID string) bool {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return false
	}
	if userID == ownerID {
		return true
	}
	role, _ := auth.Role(c.Request.Context())
	if role == rbac.RoleOperator || rbac.IsSuperAdmin(role) {
		return true
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	return false
}

func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339 timestamps"})
		return reporting.TimeRange{}, false
	}
	return reporting.TimeRange{From: from, To: to}, true
}

func attemptErrStatus(err error) int {
	switch {
	case errors.Is(err, attempt.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, attempt.ErrAlreadyExists), errors.Is(err, attempt.ErrPreconditionFailed):
		return http.StatusConflict
	case errors.Is(err, attempt.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sessionErrStatus(err error) int {
	if errors.Is(err, session.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func reportingErrStatus(err error) int {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
