// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scriptfinder

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the interaction API on rg.
//
// Routes (relative to rg):
//
//	POST /scripts/find
//	GET  /scripts/sessions/:id
//	GET  /scripts/sessions/:id/watch
//	POST /scripts/sessions/:id/confirm
//	POST /scripts/sessions/:id/decline
//	POST /scripts/search
//	POST /scripts/request
//	GET  /scripts/health
//	GET  /scripts/ready
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	scripts := rg.Group("/scripts")
	{
		// Lookup
		scripts.POST("/find", handlers.HandleFind)

		// Disambiguation
		sessions := scripts.Group("/sessions")
		{
			sessions.GET("/:id", handlers.HandleGetSession)
			sessions.GET("/:id/watch", handlers.HandleWatchSession)
			sessions.POST("/:id/confirm", handlers.HandleConfirm)
			sessions.POST("/:id/decline", handlers.HandleDecline)
		}

		// Fallback paths
		scripts.POST("/search", handlers.HandleSearch)
		scripts.POST("/request", handlers.HandleRequest)

		// Health checks
		scripts.GET("/health", handlers.HandleHealth)
		scripts.GET("/ready", handlers.HandleReady)
	}
}
