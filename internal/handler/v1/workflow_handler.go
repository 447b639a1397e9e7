package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/study"
)

type WorkflowHandler struct{}

func NewWorkflowHandler() *WorkflowHandler {
	return &WorkflowHandler{}
}

// Category resolves a workflow status to its dashboard category. Unknown
// statuses resolve to "unknown" rather than erroring; dashboards render
// whatever the data holds.
func (h *WorkflowHandler) Category(c *gin.Context) {
	status := study.WorkflowStatus(c.Param("status"))
	respondOK(c, gin.H{
		"status":   status,
		"category": status.Category(),
		"rank":     status.Rank(),
	})
}
