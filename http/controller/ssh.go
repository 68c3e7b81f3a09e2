package controller

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-vm-orchestrator/dto"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/infra"
	"github.com/tnqbao/gau-vm-orchestrator/infra/produce"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

func (ctrl *Controller) GetSSHKey(c *gin.Context) {
	ctx := c.Request.Context()
	reg := ctrl.Config.Registry.Snapshot()

	if !reg.Settings().Features.SSHKeyManagement {
		utils.JSON404(c, "SSH key management is disabled")
		return
	}
	if !ctrl.requireKeyStore(c, "SSH", reg) {
		return
	}

	vm, ok := ctrl.findVM(c, "SSH")
	if !ok {
		return
	}

	pair, err := ctrl.Infra.KeyStore.FetchKeyPair(ctx, vm.Name)
	if err != nil {
		if errors.Is(err, infra.ErrKeyNotFound) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[SSH] No key pair stored for '%s'", vm.Name)
			utils.JSON404(c, "SSH key not found for this VM")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[SSH] Failed to fetch key pair for '%s': %v", vm.Name, err)
		utils.JSON500(c, "Failed to fetch SSH key")
		return
	}

	if err := utils.ValidateSSHKeyPair(pair.PrivateKey, pair.PublicKey); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[SSH] Stored key pair for '%s' is invalid: %v", vm.Name, err)
		utils.JSON500(c, "Stored SSH key is invalid")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[SSH] Key pair for '%s' retrieved by %s", vm.Name, c.GetString("user_id"))

	utils.JSON200(c, dto.SSHKeyResponse{
		VMID:             vm.ID.String(),
		VMName:           vm.Name,
		PrivateKey:       pair.PrivateKey,
		PublicKey:        pair.PublicKey,
		Username:         registry.AdminUsername,
		ConnectionString: fmt.Sprintf("ssh %s@%s", registry.AdminUsername, vmHost(vm)),
	})
}

func (ctrl *Controller) RunCommand(c *gin.Context) {
	raw, ok := ctrl.readObject(c, "SSH")
	if !ok {
		return
	}

	req, err := dto.ParseSSHCommandRequest(raw)
	if err != nil {
		ctrl.rejectInvalid(c, "SSH", err)
		return
	}

	ctrl.submitExecution(c, req, func(reg *registry.Registry, opID string, vm *entity.VM) produce.ExecutionMessage {
		return produce.NewCommandMessage(reg, opID, vm.Name, vmHost(vm), req)
	})
}

func (ctrl *Controller) RunPlaybook(c *gin.Context) {
	raw, ok := ctrl.readObject(c, "SSH")
	if !ok {
		return
	}

	req, err := dto.ParsePlaybookRequest(raw)
	if err != nil {
		ctrl.rejectInvalid(c, "SSH", err)
		return
	}

	ctrl.submitExecution(c, req, func(reg *registry.Registry, opID string, vm *entity.VM) produce.ExecutionMessage {
		return produce.NewPlaybookMessage(reg, opID, vm.Name, vmHost(vm), req)
	})
}

func (ctrl *Controller) submitExecution(c *gin.Context, request any, build func(*registry.Registry, string, *entity.VM) produce.ExecutionMessage) {
	ctx := c.Request.Context()
	reg := ctrl.Config.Registry.Snapshot()

	vm, ok := ctrl.findVM(c, "SSH")
	if !ok {
		return
	}
	if _, ok := vmAddress(vm); vm.Status != entity.VMStatusRunning || !ok {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[SSH] VM '%s' is not reachable (%s)", vm.Name, vm.Status)
		utils.JSON409(c, "VM is not running or has no IP address")
		return
	}

	msg := build(reg, "", vm)
	op, err := newOperation(string(msg.Action), vm.Name, request, utils.GetUserIDFromContext(c))
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[SSH] Failed to encode operation request: %v", err)
		utils.JSON500(c, "Failed to create operation")
		return
	}
	msg.OperationID = op.ID.String()

	if err := ctrl.Repository.OperationRepo.Create(op); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[SSH] Failed to record operation for '%s': %v", vm.Name, err)
		utils.JSON500(c, "Failed to record operation")
		return
	}

	if err := ctrl.Infra.Produce.VMService.PublishExecution(ctx, msg); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[SSH] Failed to publish %s for '%s': %v", msg.Action, vm.Name, err)
		updatedAt := now()
		op.Status = entity.OperationStatusFailed
		op.Message = err.Error()
		op.UpdatedAt = &updatedAt
		if err := ctrl.Repository.OperationRepo.Update(op); err != nil {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[SSH] Failed to mark operation %s failed: %v", op.ID, err)
		}
		utils.JSON500(c, "Failed to submit operation")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[SSH] Submitted %s on '%s' (operation %s)", msg.Action, vm.Name, op.ID)
	utils.JSON202(c, dto.NewOperationResponse(true, fmt.Sprintf("%s submitted", msg.Action), op.ID.String(), nil))
}

// vmAddress prefers the public address over the private one.
func vmAddress(vm *entity.VM) (string, bool) {
	if vm.PublicIP != nil && *vm.PublicIP != "" {
		return *vm.PublicIP, true
	}
	if vm.PrivateIP != nil && *vm.PrivateIP != "" {
		return *vm.PrivateIP, true
	}
	return "", false
}

// vmHost falls back to the VM name when no address is known yet.
func vmHost(vm *entity.VM) string {
	if addr, ok := vmAddress(vm); ok {
		return addr
	}
	return vm.Name
}
