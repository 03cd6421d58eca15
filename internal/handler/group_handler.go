package handler

import (
	"net/http"

	"github.com/classquiz/classquiz-backend/internal/middleware"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/classquiz/classquiz-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// GroupHandler handles teacher-facing group management (CRUD).
type GroupHandler struct {
	groupService *service.GroupService
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

// ListGroups godoc
// GET /api/v1/groups
// Lists the teacher's groups with their student counts.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupService.List(c.Request.Context(), middleware.GetClaims(c).UserID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"groups": groups})
}

// GetGroup godoc
// GET /api/v1/groups/:id
func (h *GroupHandler) GetGroup(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	group, err := h.groupService.Get(c.Request.Context(), middleware.GetClaims(c).UserID, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"group": group})
}

// CreateGroup godoc
// POST /api/v1/groups
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req model.GroupRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), middleware.GetClaims(c).UserID, req.Name)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"group": group})
}

// RenameGroup godoc
// PUT /api/v1/groups/:id
func (h *GroupHandler) RenameGroup(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	var req model.GroupRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	group, err := h.groupService.Rename(c.Request.Context(), middleware.GetClaims(c).UserID, id, req.Name)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"group": group})
}

// DeleteGroup godoc
// DELETE /api/v1/groups/:id
// Fails with 409 while students are attached.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	if err := h.groupService.Delete(c.Request.Context(), middleware.GetClaims(c).UserID, id); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "group deleted successfully"})
}
