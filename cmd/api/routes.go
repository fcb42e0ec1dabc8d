package main

import (
	"reflectcall-platform/internal/dispatch"
	"reflectcall-platform/internal/httpapi"
	"reflectcall-platform/internal/rbac"
	"reflectcall-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, dispatcher *dispatch.Dispatcher, hub *telephony.ChannelHub, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	{
		// The dispatcher reacts first (opens channels, applies retry
		// policy), then the hub tears channels down on final statuses.
		status := telephony.TwilioWebhookHandler{Sink: telephony.MultiSink{dispatcher, hub}}
		r.POST("/webhooks/twilio/status", status.HandleStatusCallback)

		recording := telephony.TwilioRecordingHandler{Hub: hub}
		r.POST("/webhooks/twilio/recording", recording.HandleRecordingCallback)
	}

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireUser())
	{
		// MEMBER routes: own attempts, sessions, entries.
		v1.POST("/attempts", h.CreateAttempt)
		v1.DELETE("/attempts/:date", h.DeleteAttempt)
		v1.GET("/attempts", h.ListAttempts)
		v1.GET("/sessions/attempt/:attempt_id", h.GetSessionByAttempt)
		v1.GET("/entries", h.ListEntries)
		v1.GET("/entries/:entry_id", h.GetEntry)

		// OPERATOR routes: fleet visibility and manual intervention.
		ops := v1.Group("/ops")
		ops.Use(rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleSuperAdmin))
		{
			ops.GET("/queue", h.QueueContents)
			ops.POST("/attempts/:attempt_id/requeue", h.RequeueAttempt)
			ops.GET("/calls/live", h.LiveCalls)
			ops.GET("/reports/attempts", h.AttemptsSummary)
			ops.GET("/reports/sessions", h.SessionsSummary)
		}
	}
}
