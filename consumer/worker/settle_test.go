package worker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/infra/produce"
)

const settledAt = "2026-01-02T03:04:05Z"

func opFor(action produce.Action) *entity.Operation {
	return &entity.Operation{Action: string(action)}
}

func TestSettleOperationSuccess(t *testing.T) {
	op := &entity.Operation{Status: entity.OperationStatusPending}
	res := produce.ResultMessage{OperationID: "op-1", Success: true, PrivateIP: "10.0.0.4"}

	require.NoError(t, settleOperation(op, res, settledAt))

	assert.Equal(t, entity.OperationStatusSucceeded, op.Status)
	assert.True(t, op.Settled())
	require.NotNil(t, op.UpdatedAt)
	assert.Equal(t, settledAt, *op.UpdatedAt)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(op.Result, &stored))
	assert.Equal(t, "10.0.0.4", stored["private_ip"])
}

func TestSettleOperationFailureKeepsWorkerError(t *testing.T) {
	op := &entity.Operation{Status: entity.OperationStatusPending}

	require.NoError(t, settleOperation(op, produce.ResultMessage{Error: "quota exceeded"}, settledAt))
	assert.Equal(t, entity.OperationStatusFailed, op.Status)
	assert.Equal(t, "quota exceeded", op.Message)

	op = &entity.Operation{Status: entity.OperationStatusPending}
	require.NoError(t, settleOperation(op, produce.ResultMessage{}, settledAt))
	assert.Equal(t, "Operation failed", op.Message)
}

func TestSettleVMCreateRecordsAddresses(t *testing.T) {
	vm := &entity.VM{Name: "vm-1", Status: entity.VMStatusCreating}

	remove := settleVM(vm, opFor(produce.ActionCreate), produce.ResultMessage{
		Success:   true,
		PrivateIP: "10.0.0.4",
		PublicIP:  "20.1.2.3",
	}, settledAt)

	assert.False(t, remove)
	assert.Equal(t, entity.VMStatusRunning, vm.Status)
	require.NotNil(t, vm.PrivateIP)
	assert.Equal(t, "10.0.0.4", *vm.PrivateIP)
	require.NotNil(t, vm.PublicIP)
	assert.Equal(t, "20.1.2.3", *vm.PublicIP)
}

func TestSettleVMResizeKeepsKnownAddresses(t *testing.T) {
	ip := "10.0.0.4"
	vm := &entity.VM{Name: "vm-1", Status: entity.VMStatusResizing, PrivateIP: &ip}

	settleVM(vm, opFor(produce.ActionResize), produce.ResultMessage{Success: true}, settledAt)

	assert.Equal(t, entity.VMStatusRunning, vm.Status)
	assert.Equal(t, "10.0.0.4", *vm.PrivateIP)
}

func TestSettleVMFailureMarksError(t *testing.T) {
	for _, action := range []produce.Action{produce.ActionCreateKyubo, produce.ActionUpdate, produce.ActionDelete} {
		vm := &entity.VM{Name: "vm-1", Status: entity.VMStatusCreating}
		remove := settleVM(vm, opFor(action), produce.ResultMessage{Error: "boom"}, settledAt)
		assert.False(t, remove, action)
		assert.Equal(t, entity.VMStatusError, vm.Status, action)
	}
}

func TestSettleVMDeleteRemovesRecord(t *testing.T) {
	vm := &entity.VM{Name: "vm-1", Status: entity.VMStatusDeleting}

	assert.True(t, settleVM(vm, opFor(produce.ActionDelete), produce.ResultMessage{Success: true}, settledAt))
	assert.Equal(t, entity.VMStatusDeleted, vm.Status)
}

func TestSettleVMIgnoresExecutions(t *testing.T) {
	vm := &entity.VM{Name: "vm-1", Status: entity.VMStatusRunning}

	for _, action := range []produce.Action{produce.ActionCommand, produce.ActionPlaybook} {
		assert.False(t, settleVM(vm, opFor(action), produce.ResultMessage{Error: "exit 1"}, settledAt))
		assert.Equal(t, entity.VMStatusRunning, vm.Status)
		assert.Nil(t, vm.UpdatedAt)
	}
}

func TestStatusFromResultDefaults(t *testing.T) {
	vm := &entity.VM{Name: "vm-1", Status: entity.VMStatusRunning}
	status := statusFromResult(vm, produce.ResultMessage{Success: true})
	assert.Equal(t, "vm-1", status.Name)
	assert.Equal(t, "running", status.PowerState)
	assert.Equal(t, "Succeeded", status.ProvisioningState)
	assert.NotNil(t, status.Statuses)

	vm.Status = entity.VMStatusError
	status = statusFromResult(vm, produce.ResultMessage{PowerState: "stopped"})
	assert.Equal(t, "stopped", status.PowerState)
	assert.Equal(t, "Failed", status.ProvisioningState)
}

func TestSettleVMAppliesDesiredStateOnlyOnSuccess(t *testing.T) {
	update := &entity.Operation{Action: string(produce.ActionUpdate), Request: []byte(`{"tags":{"team":"infra"}}`)}
	resize := &entity.Operation{Action: string(produce.ActionResize), Request: []byte(`{"size":"Standard_B2s"}`)}

	vm := &entity.VM{Name: "vm-1", Size: "Standard_B1s", Status: entity.VMStatusUpdating,
		Tags: datatypes.NewJSONType(map[string]string{"Project": "VM-Management"})}
	settleVM(vm, update, produce.ResultMessage{Error: "denied"}, settledAt)
	assert.Equal(t, entity.VMStatusError, vm.Status)
	assert.Equal(t, map[string]string{"Project": "VM-Management"}, vm.Tags.Data())

	settleVM(vm, resize, produce.ResultMessage{Error: "no capacity"}, settledAt)
	assert.Equal(t, "Standard_B1s", vm.Size)

	settleVM(vm, update, produce.ResultMessage{Success: true}, settledAt)
	assert.Equal(t, map[string]string{"Project": "VM-Management", "team": "infra"}, vm.Tags.Data())
	assert.Equal(t, "Standard_B1s", vm.Size)

	settleVM(vm, resize, produce.ResultMessage{Success: true}, settledAt)
	assert.Equal(t, "Standard_B2s", vm.Size)
	assert.Equal(t, entity.VMStatusRunning, vm.Status)
}

func TestSettleVMCreateIgnoresRequestBody(t *testing.T) {
	op := &entity.Operation{Action: string(produce.ActionCreate), Request: []byte(`{"name":"vm-1","size":"Standard_D4s_v3","tags":{"x":"y"}}`)}
	vm := &entity.VM{Name: "vm-1", Size: "Standard_B1s", Status: entity.VMStatusCreating}

	settleVM(vm, op, produce.ResultMessage{Success: true}, settledAt)

	assert.Equal(t, "Standard_B1s", vm.Size)
	assert.Nil(t, vm.Tags.Data())
}
