package controller

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/tnqbao/gau-vm-orchestrator/dto"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/infra"
	"github.com/tnqbao/gau-vm-orchestrator/infra/produce"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/repository"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (ctrl *Controller) CreateVM(c *gin.Context) {
	ctx := c.Request.Context()
	reg := ctrl.Config.Registry.Snapshot()

	raw, ok := ctrl.readObject(c, "VM")
	if !ok {
		return
	}

	req, err := dto.ParseVMCreateRequest(reg, raw)
	if err != nil {
		ctrl.rejectInvalid(c, "VM", err)
		return
	}

	subscriptionID, ok := ctrl.requireSubscription(c, "VM")
	if !ok {
		return
	}
	if !ctrl.requireKeyStore(c, "VM", reg) {
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[VM] Creating VM '%s' (%s) in region '%s'", req.Name, req.Size, req.Region)

	spec := produce.SpecFromCreate(req)
	vm := newVMRecord(c, reg, spec, entity.VMKindStandard)

	op, ok := ctrl.submitProvision(c, "VM", provisionJob{
		reg:            reg,
		subscriptionID: subscriptionID,
		action:         produce.ActionCreate,
		spec:           spec,
		request:        req,
		vm:             vm,
		status:         entity.VMStatusCreating,
	})
	if !ok {
		return
	}

	utils.JSON202(c, dto.NewOperationResponse(true, "VM creation started", op.ID.String(), map[string]any{
		"vm": toVMResponse(vm),
	}))
}

func (ctrl *Controller) ListVMs(c *gin.Context) {
	ctx := c.Request.Context()

	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		utils.JSON400(c, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxListLimit)

	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		utils.JSON400(c, "offset must be a non-negative integer")
		return
	}

	vms, total, err := ctrl.Repository.VMRepo.List(entity.VMStatus(c.Query("status")), ownerScope(c), limit, offset)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[VM] Failed to list VMs: %v", err)
		utils.JSON500(c, "Failed to list VMs")
		return
	}

	resp := make([]dto.VMResponse, 0, len(vms))
	for i := range vms {
		resp = append(resp, toVMResponse(&vms[i]))
	}

	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	utils.JSON200(c, resp)
}

func (ctrl *Controller) GetVM(c *gin.Context) {
	vm, ok := ctrl.findVM(c, "VM")
	if !ok {
		return
	}
	utils.JSON200(c, toVMResponse(vm))
}

func (ctrl *Controller) UpdateVM(c *gin.Context) {
	ctx := c.Request.Context()
	reg := ctrl.Config.Registry.Snapshot()

	raw, ok := ctrl.readObject(c, "VM")
	if !ok {
		return
	}

	req, err := dto.ParseVMUpdateRequest(raw)
	if err != nil {
		ctrl.rejectInvalid(c, "VM", err)
		return
	}

	vm, ok := ctrl.findVM(c, "VM")
	if !ok {
		return
	}

	if req.Tags == nil {
		ctrl.Infra.Logger.InfoWithContextf(ctx, "[VM] Nothing to update for '%s'", vm.Name)
		utils.JSON200(c, dto.NewOperationResponse(true, "Nothing to update", "", map[string]any{
			"vm": toVMResponse(vm),
		}))
		return
	}

	if !ctrl.requireIdle(c, "VM", vm) {
		return
	}

	subscriptionID, ok := ctrl.requireSubscription(c, "VM")
	if !ok {
		return
	}

	op, ok := ctrl.submitProvision(c, "VM", provisionJob{
		reg:            reg,
		subscriptionID: subscriptionID,
		action:         produce.ActionUpdate,
		spec:           produce.VMSpec{Name: vm.Name, Tags: req.Tags},
		request:        req,
		vm:             vm,
		status:         entity.VMStatusUpdating,
	})
	if !ok {
		return
	}

	utils.JSON202(c, dto.NewOperationResponse(true, "VM update started", op.ID.String(), nil))
}

func (ctrl *Controller) ResizeVM(c *gin.Context) {
	reg := ctrl.Config.Registry.Snapshot()

	raw, ok := ctrl.readObject(c, "VM")
	if !ok {
		return
	}

	req, err := dto.ParseVMResizeRequest(reg, raw)
	if err != nil {
		ctrl.rejectInvalid(c, "VM", err)
		return
	}

	vm, ok := ctrl.findVM(c, "VM")
	if !ok {
		return
	}
	if !ctrl.requireIdle(c, "VM", vm) {
		return
	}

	if vm.Size == req.Size {
		utils.JSON200(c, dto.NewOperationResponse(true, "VM already has size "+req.Size, "", nil))
		return
	}

	subscriptionID, ok := ctrl.requireSubscription(c, "VM")
	if !ok {
		return
	}

	op, ok := ctrl.submitProvision(c, "VM", provisionJob{
		reg:            reg,
		subscriptionID: subscriptionID,
		action:         produce.ActionResize,
		spec:           produce.VMSpec{Name: vm.Name, Size: req.Size},
		request:        req,
		vm:             vm,
		status:         entity.VMStatusResizing,
	})
	if !ok {
		return
	}

	utils.JSON202(c, dto.NewOperationResponse(true, "VM resize started", op.ID.String(), map[string]any{
		"size": req.Size,
	}))
}

func (ctrl *Controller) DeleteVM(c *gin.Context) {
	reg := ctrl.Config.Registry.Snapshot()

	vm, ok := ctrl.findVM(c, "VM")
	if !ok {
		return
	}
	if vm.Status == entity.VMStatusDeleting {
		utils.JSON409(c, "VM is already being deleted")
		return
	}

	subscriptionID, ok := ctrl.requireSubscription(c, "VM")
	if !ok {
		return
	}

	op, ok := ctrl.submitProvision(c, "VM", provisionJob{
		reg:            reg,
		subscriptionID: subscriptionID,
		action:         produce.ActionDelete,
		spec:           produce.VMSpec{Name: vm.Name},
		request:        map[string]string{"name": vm.Name},
		vm:             vm,
		status:         entity.VMStatusDeleting,
	})
	if !ok {
		return
	}

	utils.JSON202(c, dto.NewOperationResponse(true, "VM deletion started", op.ID.String(), nil))
}

// GetVMStatus prefers the status cached by the result consumer once the
// caller is known to own the VM.
func (ctrl *Controller) GetVMStatus(c *gin.Context) {
	ctx := c.Request.Context()

	vm, ok := ctrl.findVM(c, "VM")
	if !ok {
		return
	}

	var cached dto.VMStatusResponse
	err := ctrl.Infra.Redis.Get(ctx, infra.VMStatusKey(vm.Name), &cached)
	if err == nil {
		utils.JSON200(c, cached)
		return
	}
	if !errors.Is(err, infra.ErrCacheMiss) {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[VM] Failed to read cached status for '%s': %v", vm.Name, err)
	}
	utils.JSON200(c, vmStatusFromRecord(vm))
}

func (ctrl *Controller) findVM(c *gin.Context, tag string) (*entity.VM, bool) {
	ctx := c.Request.Context()
	name := c.Param("name")

	vm, err := ctrl.Repository.VMRepo.FindByName(name)
	if err != nil {
		if repository.IsNotFound(err) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] VM '%s' not found", tag, name)
			utils.JSON404(c, "VM not found")
			return nil, false
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to load VM '%s': %v", tag, name, err)
		utils.JSON500(c, "Failed to load VM")
		return nil, false
	}
	if !canAccess(c, vm.OwnerID) {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] VM '%s' is not visible to %s", tag, name, c.GetString("user_id"))
		utils.JSON404(c, "VM not found")
		return nil, false
	}
	return vm, true
}

// requireIdle rejects changes to a VM whose previous operation is still running.
func (ctrl *Controller) requireIdle(c *gin.Context, tag string, vm *entity.VM) bool {
	switch vm.Status {
	case entity.VMStatusRunning, entity.VMStatusError:
		return true
	}
	ctrl.Infra.Logger.WarningWithContextf(c.Request.Context(), "[%s] VM '%s' is busy (%s)", tag, vm.Name, vm.Status)
	utils.JSON409(c, "VM has an operation in progress")
	return false
}

// newVMRecord stores the merged tags the VM is created with.
func newVMRecord(c *gin.Context, reg *registry.Registry, spec produce.VMSpec, kind entity.VMKind) *entity.VM {
	tags := produce.MergeTags(reg.DefaultTags(), spec.Tags)
	return &entity.VM{
		ID:            uuid.New(),
		Name:          spec.Name,
		Kind:          kind,
		Region:        spec.Region,
		Size:          spec.Size,
		ResourceGroup: produce.ResourceGroupName(spec.Name),
		Tags:          datatypes.NewJSONType(tags),
		DataDisk:      datatypes.NewJSONType(toDataDisk(spec.DataDisk)),
		OwnerID:       utils.GetUserIDFromContext(c),
		CreatedAt:     now(),
	}
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	value := c.Query(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}
