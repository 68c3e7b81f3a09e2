package worker

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/tnqbao/gau-vm-orchestrator/dto"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/infra/produce"
)

// settleOperation records a worker result on op.
func settleOperation(op *entity.Operation, res produce.ResultMessage, at string) error {
	body, err := json.Marshal(res)
	if err != nil {
		return err
	}

	op.Result = body
	op.UpdatedAt = &at
	if res.Success {
		op.Status = entity.OperationStatusSucceeded
		op.Message = "Operation completed"
	} else {
		op.Status = entity.OperationStatusFailed
		op.Message = res.Error
		if op.Message == "" {
			op.Message = "Operation failed"
		}
	}
	return nil
}

// desiredState is the part of an update or resize request that reaches the
// VM record only once the worker reports success.
type desiredState struct {
	Tags map[string]string `json:"tags"`
	Size string            `json:"size"`
}

// settleVM applies the result of op to vm and reports whether the record
// should be removed. Command and playbook runs leave the VM alone.
func settleVM(vm *entity.VM, op *entity.Operation, res produce.ResultMessage, at string) bool {
	action := produce.Action(op.Action)
	if action == produce.ActionCommand || action == produce.ActionPlaybook {
		return false
	}

	vm.UpdatedAt = &at

	if !res.Success {
		vm.Status = entity.VMStatusError
		return false
	}

	if action == produce.ActionDelete {
		vm.Status = entity.VMStatusDeleted
		return true
	}

	vm.Status = entity.VMStatusRunning
	if action == produce.ActionUpdate || action == produce.ActionResize {
		applyDesired(vm, op.Request)
	}
	if res.PrivateIP != "" {
		ip := res.PrivateIP
		vm.PrivateIP = &ip
	}
	if res.PublicIP != "" {
		ip := res.PublicIP
		vm.PublicIP = &ip
	}
	return false
}

// applyDesired leaves the record unchanged when request does not decode.
func applyDesired(vm *entity.VM, request datatypes.JSON) {
	var desired desiredState
	if len(request) == 0 || json.Unmarshal(request, &desired) != nil {
		return
	}
	if desired.Tags != nil {
		vm.Tags = datatypes.NewJSONType(produce.MergeTags(vm.Tags.Data(), desired.Tags))
	}
	if desired.Size != "" {
		vm.Size = desired.Size
	}
}

// statusFromResult is cached so status reads skip the database.
func statusFromResult(vm *entity.VM, res produce.ResultMessage) dto.VMStatusResponse {
	powerState := res.PowerState
	provisioningState := res.ProvisioningState

	if vm.Status == entity.VMStatusError {
		powerState, provisioningState = defaultString(powerState, "unknown"), defaultString(provisioningState, "Failed")
	} else {
		powerState, provisioningState = defaultString(powerState, "running"), defaultString(provisioningState, "Succeeded")
	}

	status := dto.NewVMStatusResponse(vm.Name, powerState, provisioningState)
	if res.Statuses != nil {
		status.Statuses = res.Statuses
	}
	return status
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
