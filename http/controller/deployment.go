package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-vm-orchestrator/dto"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/infra/produce"
	"github.com/tnqbao/gau-vm-orchestrator/repository"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

// CreateKyuboVM answers with the operation id; the VM name is in the
// operation's data once polled.
func (ctrl *Controller) CreateKyuboVM(c *gin.Context) {
	ctx := c.Request.Context()
	reg := ctrl.Config.Registry.Snapshot()

	raw, ok := ctrl.readObject(c, "Kyubo")
	if !ok {
		return
	}

	req, err := dto.ParseCreateKyuboVMRequest(reg, raw)
	if err != nil {
		ctrl.rejectInvalid(c, "Kyubo", err)
		return
	}

	subscriptionID, ok := ctrl.requireSubscription(c, "Kyubo")
	if !ok {
		return
	}
	if !ctrl.requireKeyStore(c, "Kyubo", reg) {
		return
	}

	existing, err := ctrl.Repository.VMRepo.FindByRequestID(req.RequestID)
	if err == nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Kyubo] Request '%s' already provisioned VM '%s'", req.RequestID, existing.Name)
		utils.JSON409(c, "A VM for this request_id already exists")
		return
	}
	if !repository.IsNotFound(err) {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Kyubo] Error checking request_id existence: %v", err)
		utils.JSON500(c, "Error checking request_id existence")
		return
	}

	spec := produce.SpecFromKyubo(reg, req, shortID())
	vm := newVMRecord(c, reg, spec, entity.VMKindKyubo)
	vm.RequestID = req.RequestID

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Kyubo] Creating VM '%s' (%s) for tenant '%s', %d sessions",
		spec.Name, spec.Size, req.Tenant, req.MaxConcurrentSessions)

	op, ok := ctrl.submitProvision(c, "Kyubo", provisionJob{
		reg:            reg,
		subscriptionID: subscriptionID,
		action:         produce.ActionCreateKyubo,
		spec:           spec,
		request:        req,
		vm:             vm,
		status:         entity.VMStatusCreating,
	})
	if !ok {
		return
	}

	utils.JSON202(c, dto.KyuboVMResponse{
		ID:     op.ID.String(),
		Status: string(vm.Status),
	})
}

func (ctrl *Controller) CreateSoloVM(c *gin.Context) {
	ctx := c.Request.Context()
	reg := ctrl.Config.Registry.Snapshot()

	raw, ok := ctrl.readObject(c, "Solo")
	if !ok {
		return
	}

	req, err := dto.ParseCreateSoloVMRequest(reg, raw)
	if err != nil {
		ctrl.rejectInvalid(c, "Solo", err)
		return
	}

	subscriptionID, ok := ctrl.requireSubscription(c, "Solo")
	if !ok {
		return
	}
	if !ctrl.requireKeyStore(c, "Solo", reg) {
		return
	}

	spec := produce.SpecFromSolo(req, shortID())
	vm := newVMRecord(c, reg, spec, entity.VMKindSolo)

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Solo] Creating VM '%s' (%s) for client '%s', criticidad '%s'",
		spec.Name, spec.Size, req.Cliente, req.Criticidad)

	op, ok := ctrl.submitProvision(c, "Solo", provisionJob{
		reg:            reg,
		subscriptionID: subscriptionID,
		action:         produce.ActionCreateSolo,
		spec:           spec,
		request:        req,
		vm:             vm,
		status:         entity.VMStatusCreating,
	})
	if !ok {
		return
	}

	utils.JSON202(c, dto.NewOperationResponse(true, "Solo VM creation started", op.ID.String(), map[string]any{
		"vm": toVMResponse(vm),
	}))
}

// KyuboCommunication records the address a Kyubo VM reports once it is up.
func (ctrl *Controller) KyuboCommunication(c *gin.Context) {
	ctx := c.Request.Context()

	raw, ok := ctrl.readObject(c, "Kyubo")
	if !ok {
		return
	}

	data, err := dto.ParseKyuboCommunicationData(raw)
	if err != nil {
		ctrl.rejectInvalid(c, "Kyubo", err)
		return
	}

	vm, err := ctrl.Repository.VMRepo.FindByRequestID(data.RequestID)
	if err != nil {
		if repository.IsNotFound(err) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Kyubo] No VM for request '%s'", data.RequestID)
			utils.JSON404(c, "No VM found for this request_id")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Kyubo] Failed to load VM for request '%s': %v", data.RequestID, err)
		utils.JSON500(c, "Failed to load VM")
		return
	}

	updatedAt := now()
	vm.IPCommunication = data.IPCommunication
	vm.UpdatedAt = &updatedAt
	if err := ctrl.Repository.VMRepo.Update(vm); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Kyubo] Failed to record communication data for '%s': %v", vm.Name, err)
		utils.JSON500(c, "Failed to record communication data")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Kyubo] VM '%s' communicates on %s", vm.Name, data.IPCommunication)
	utils.JSON200(c, dto.NewOperationResponse(true, "Communication data recorded", "", map[string]any{
		"vm_name":          vm.Name,
		"ip_communication": data.IPCommunication,
		"request_id":       data.RequestID,
	}))
}

func shortID() string {
	return uuid.NewString()[:8]
}
