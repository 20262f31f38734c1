// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nexus

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the nexus API under the given router group.
//
// Routes (relative to rg, typically /v1):
//
//	GET  /nexus/health        - Liveness probe
//	GET  /nexus/ready         - Readiness probe (graph loaded)
//	GET  /nexus/algorithms    - List the analysis registry
//	POST /nexus/graph         - Load a graph document
//	GET  /nexus/graph/stats   - Current graph statistics
//	POST /nexus/analyze       - Run one analysis
//	GET  /nexus/history       - List recent runs
//	GET  /nexus/history/:id   - Fetch one run
//	POST /nexus/narrate       - Narrate a result
//	GET  /nexus/similar/:id   - Semantically similar concepts
//	GET  /nexus/watch         - WebSocket stream of graph changes
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	nexus := rg.Group("/nexus")
	{
		nexus.GET("/health", h.HandleHealth)
		nexus.GET("/ready", h.HandleReady)
		nexus.GET("/algorithms", h.HandleAlgorithms)

		nexus.POST("/graph", h.HandleLoadGraph)
		nexus.GET("/graph/stats", h.HandleGraphStats)

		nexus.POST("/analyze", h.HandleAnalyze)

		nexus.GET("/history", h.HandleHistory)
		nexus.GET("/history/:id", h.HandleRun)

		nexus.POST("/narrate", h.HandleNarrate)
		nexus.GET("/similar/:id", h.HandleSimilar)

		nexus.GET("/watch", h.HandleWatch)
	}
}
