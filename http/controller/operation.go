package controller

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-vm-orchestrator/dto"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/repository"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

func (ctrl *Controller) GetOperation(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid operation id")
		return
	}

	op, err := ctrl.Repository.OperationRepo.FindByID(id)
	if err != nil {
		if repository.IsNotFound(err) {
			utils.JSON404(c, "Operation not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Operation] Failed to load operation %s: %v", id, err)
		utils.JSON500(c, "Failed to load operation")
		return
	}
	if !canAccess(c, op.OwnerID) {
		utils.JSON404(c, "Operation not found")
		return
	}

	utils.JSON200(c, operationResponse(op))
}

// ListVMOperations returns the newest operations recorded against a VM name,
// including those of VMs already deleted.
func (ctrl *Controller) ListVMOperations(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		utils.JSON400(c, "limit must be a positive integer")
		return
	}

	ops, err := ctrl.Repository.OperationRepo.ListByVMName(name, ownerScope(c), min(limit, maxListLimit))
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Operation] Failed to list operations for '%s': %v", name, err)
		utils.JSON500(c, "Failed to list operations")
		return
	}

	resp := make([]dto.OperationResponse, 0, len(ops))
	for i := range ops {
		resp = append(resp, operationResponse(&ops[i]))
	}
	utils.JSON200(c, resp)
}

func operationResponse(op *entity.Operation) dto.OperationResponse {
	data := map[string]any{
		"action":     op.Action,
		"vm_name":    op.VMName,
		"status":     string(op.Status),
		"created_at": op.CreatedAt,
		"updated_at": op.UpdatedAt,
	}
	if len(op.Result) > 0 {
		var result any
		if err := json.Unmarshal(op.Result, &result); err == nil {
			data["result"] = result
		}
	}

	message := op.Message
	if message == "" {
		message = "Operation " + string(op.Status)
	}

	return dto.NewOperationResponse(op.Status != entity.OperationStatusFailed, message, op.ID.String(), data)
}
