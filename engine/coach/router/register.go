package coachrouter

import (
	"github.com/gin-gonic/gin"
)

// Register mounts the coaching endpoints on the versioned API group.
// Every route requires an authenticated caller.
func Register(apiBase *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	apiBase.POST("/chat", requireAuth, handleChat)
	exercises := apiBase.Group("/exercises", requireAuth)
	exercises.POST("/describe", handleDescribe)
	programs := apiBase.Group("/programs", requireAuth)
	programs.POST("/generate", handleGenerate)
	programs.POST("/repair", handleRepair)
	debug := apiBase.Group("/debug", requireAuth)
	debug.GET("/ai-requests", handleListAudit)
}
