package controller

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/infra"
	"github.com/tnqbao/gau-vm-orchestrator/infra/produce"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

// provisionJob is one lifecycle action on a VM. vm is a new record for create
// actions and the stored record otherwise.
type provisionJob struct {
	reg            *registry.Registry
	subscriptionID string
	action         produce.Action
	spec           produce.VMSpec
	request        any
	vm             *entity.VM
	status         entity.VMStatus
}

// submitProvision records the VM and a pending operation in one transaction,
// then publishes the job. A new VM's key pair is stored only once the record
// owns the name. The caller writes the success response.
func (ctrl *Controller) submitProvision(c *gin.Context, tag string, job provisionJob) (*entity.Operation, bool) {
	ctx := c.Request.Context()

	if job.action.Creates() && !ctrl.requireFreeName(c, tag, job.spec.Name) {
		return nil, false
	}

	op, err := newOperation(string(job.action), job.spec.Name, job.request, utils.GetUserIDFromContext(c))
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to encode operation request: %v", tag, err)
		utils.JSON500(c, "Failed to create operation")
		return nil, false
	}

	msg, err := produce.NewProvisionMessage(job.reg, job.subscriptionID, op.ID.String(), job.action, job.spec)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to build provision message: %v", tag, err)
		utils.JSON500(c, "Failed to create operation")
		return nil, false
	}

	var keyPair *infra.SSHKeyPair
	if job.action.Creates() && job.reg.Settings().Features.SSHKeyManagement {
		keyPair, err = generateSSHKey(job.reg, job.spec.Name)
		if err != nil {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to generate SSH key for '%s': %v", tag, job.spec.Name, err)
			utils.JSON500(c, "Failed to provision SSH key")
			return nil, false
		}
		msg.SSHPublicKey = keyPair.PublicKey
	}

	previous := job.vm.Status
	job.vm.Status = job.status
	if !job.action.Creates() {
		updatedAt := now()
		job.vm.UpdatedAt = &updatedAt
	}

	tx := ctrl.Repository.BeginTransaction(ctrl.Infra.Postgres.DB)
	txRepo := ctrl.Repository.WithTransaction(tx)
	if job.action.Creates() {
		err = txRepo.VMRepo.Create(job.vm)
	} else {
		err = txRepo.VMRepo.Update(job.vm)
	}
	if err == nil {
		err = txRepo.OperationRepo.Create(op)
	}
	if err != nil {
		tx.Rollback()
		job.vm.Status = previous
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] VM with name '%s' was taken concurrently", tag, job.spec.Name)
			utils.JSON409(c, "VM with this name already exists")
			return nil, false
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to record operation for '%s': %v", tag, job.spec.Name, err)
		utils.JSON500(c, "Failed to record operation")
		return nil, false
	}
	if err := tx.Commit().Error; err != nil {
		job.vm.Status = previous
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to commit operation for '%s': %v", tag, job.spec.Name, err)
		utils.JSON500(c, "Failed to record operation")
		return nil, false
	}

	if keyPair != nil {
		if err := ctrl.Infra.KeyStore.StoreKeyPair(ctx, job.spec.Name, *keyPair); err != nil {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to store SSH key for '%s': %v", tag, job.spec.Name, err)
			ctrl.abandon(ctx, tag, op, job, previous, err)
			utils.JSON500(c, "Failed to provision SSH key")
			return nil, false
		}
		ctrl.count(ctx, registry.MetricSSHKeyGeneration, attribute.String("type", job.reg.Settings().SSHKey.Type))
	}

	if err := ctrl.Infra.Produce.VMService.PublishProvision(ctx, msg); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to publish %s for '%s': %v", tag, job.action, job.spec.Name, err)
		ctrl.abandon(ctx, tag, op, job, previous, err)
		utils.JSON500(c, "Failed to submit operation")
		return nil, false
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[%s] Submitted %s for '%s' (operation %s, subscription %s)",
		tag, job.action, job.spec.Name, op.ID, MaskSensitiveString(job.subscriptionID))

	switch {
	case job.action.Creates():
		ctrl.count(ctx, registry.MetricVMCreation, attribute.String("action", string(job.action)), attribute.String("region", job.spec.Region))
	case job.action == produce.ActionDelete:
		ctrl.count(ctx, registry.MetricVMDeletion)
	}

	return op, true
}

// requireFreeName answers 409 when a VM record already holds name.
func (ctrl *Controller) requireFreeName(c *gin.Context, tag, name string) bool {
	ctx := c.Request.Context()

	exists, err := ctrl.Repository.VMRepo.ExistsByName(name)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Error checking VM name existence: %v", tag, err)
		utils.JSON500(c, "Error checking VM name existence")
		return false
	}
	if exists {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] VM with name '%s' already exists", tag, name)
		utils.JSON409(c, "VM with this name already exists")
		return false
	}
	return true
}

// abandon marks an operation that never reached a worker as failed. A VM
// record that was only just created is dropped, with its key pair, so the
// name can be reused. Other VMs get their previous status back.
func (ctrl *Controller) abandon(ctx context.Context, tag string, op *entity.Operation, job provisionJob, previous entity.VMStatus, cause error) {
	updatedAt := now()
	op.Status = entity.OperationStatusFailed
	op.Message = cause.Error()
	op.UpdatedAt = &updatedAt
	if err := ctrl.Repository.OperationRepo.Update(op); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to mark operation %s failed: %v", tag, op.ID, err)
	}

	job.vm.Status = previous

	if job.action.Creates() {
		if err := ctrl.Repository.VMRepo.DeleteByName(job.vm.Name); err != nil {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to roll back VM record '%s': %v", tag, job.vm.Name, err)
		}
		if ctrl.Infra.KeyStore != nil {
			if err := ctrl.Infra.KeyStore.DeleteKeyPair(ctx, job.vm.Name); err != nil {
				ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to roll back SSH key for '%s': %v", tag, job.vm.Name, err)
			}
		}
		return
	}

	if err := ctrl.Repository.VMRepo.UpdateStatus(job.vm.Name, previous, updatedAt); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to restore status of '%s': %v", tag, job.vm.Name, err)
	}
}

// generateSSHKey creates the VM's key pair; the public half goes to the
// provisioning worker.
func generateSSHKey(reg *registry.Registry, vmName string) (*infra.SSHKeyPair, error) {
	params := reg.Settings().SSHKey
	privateKey, publicKey, err := utils.GenerateSSHKeyPair(params.Type, params.Size, registry.AdminUsername+"@"+vmName)
	if err != nil {
		return nil, err
	}
	return &infra.SSHKeyPair{PrivateKey: privateKey, PublicKey: publicKey}, nil
}
