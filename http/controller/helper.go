package controller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/tnqbao/gau-vm-orchestrator/config"
	"github.com/tnqbao/gau-vm-orchestrator/dto"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
	"github.com/tnqbao/gau-vm-orchestrator/validation"
)

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// readObject decodes the body as a JSON object, answering 400 otherwise.
func (ctrl *Controller) readObject(c *gin.Context, tag string) (map[string]any, bool) {
	ctx := c.Request.Context()
	body, err := readRequestBody(c)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to read request body: %v", tag, err)
		utils.JSON400(c, "Failed to read request body")
		return nil, false
	}

	raw, err := validation.DecodeObject(body)
	if err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] Malformed JSON body: %v", tag, err)
		utils.JSON400(c, "Invalid request payload")
		return nil, false
	}
	return raw, true
}

// rejectInvalid answers 422 for a validation failure and 500 for anything else.
func (ctrl *Controller) rejectInvalid(c *gin.Context, tag string, err error) {
	ctx := c.Request.Context()
	ctrl.count(ctx, registry.MetricError, attribute.String("kind", "validation"))

	if v, ok := validation.AsViolation(err); ok {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[%s] Request rejected: %s", tag, v.Error())
		utils.JSON422(c, v)
		return
	}
	ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Failed to validate request: %v", tag, err)
	utils.JSON500(c, "Failed to validate request")
}

// requireSubscription answers 503 when no Azure subscription is configured.
func (ctrl *Controller) requireSubscription(c *gin.Context, tag string) (string, bool) {
	subscriptionID, err := ctrl.Config.EnvConfig.SubscriptionID()
	if err != nil {
		ctrl.unavailable(c, tag, err)
		return "", false
	}
	return subscriptionID, true
}

// requireKeyStore answers 503 when SSH key management is on but the key
// store could not be initialized.
func (ctrl *Controller) requireKeyStore(c *gin.Context, tag string, reg *registry.Registry) bool {
	if !reg.Settings().Features.SSHKeyManagement || ctrl.Infra.KeyStore != nil {
		return true
	}
	err := ctrl.Infra.KeyStoreErr
	if err == nil {
		err = errors.New("key store is not configured")
	}
	ctrl.unavailable(c, tag, err)
	return false
}

func (ctrl *Controller) unavailable(c *gin.Context, tag string, err error) {
	ctx := c.Request.Context()
	ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[%s] Required credentials are missing: %v", tag, err)
	ctrl.count(ctx, registry.MetricError, attribute.String("kind", "credentials"))

	var missing *config.MissingEnvError
	if errors.As(err, &missing) {
		utils.JSON503(c, missing.Name+" is not configured")
		return
	}
	utils.JSON503(c, "Service is not configured for this operation")
}

// ownerScope is the owner filter for listings; admins see every record.
func ownerScope(c *gin.Context) *uuid.UUID {
	if utils.IsAdmin(c) {
		return nil
	}
	owner := utils.GetUserIDFromContext(c)
	return &owner
}

func canAccess(c *gin.Context, owner uuid.UUID) bool {
	return utils.IsAdmin(c) || owner == utils.GetUserIDFromContext(c)
}

func (ctrl *Controller) count(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if ctrl.Infra.Telemetry == nil {
		return
	}
	ctrl.Infra.Telemetry.Metrics.Add(ctx, name, attrs...)
}

func newOperation(action, vmName string, request any, ownerID uuid.UUID) (*entity.Operation, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	return &entity.Operation{
		ID:        uuid.New(),
		Action:    action,
		VMName:    vmName,
		Status:    entity.OperationStatusPending,
		Request:   datatypes.JSON(body),
		OwnerID:   ownerID,
		CreatedAt: now(),
	}, nil
}

func toVMResponse(vm *entity.VM) dto.VMResponse {
	tags := vm.Tags.Data()
	if tags == nil {
		tags = map[string]string{}
	}
	return dto.VMResponse{
		ID:        vm.ID.String(),
		Name:      vm.Name,
		Region:    vm.Region,
		Size:      vm.Size,
		Status:    string(vm.Status),
		PrivateIP: vm.PrivateIP,
		PublicIP:  vm.PublicIP,
		CreatedAt: vm.CreatedAt,
		UpdatedAt: vm.UpdatedAt,
		Tags:      tags,
	}
}

func toDataDisk(disk *dto.DataDiskConfig) *entity.DataDisk {
	if disk == nil {
		return nil
	}
	return &entity.DataDisk{
		Enabled:      disk.Enabled,
		SizeGB:       disk.SizeGB,
		MountPoint:   disk.MountPoint,
		AutoSetupSBC: disk.AutoSetupSBC,
	}
}

// vmStatusFromRecord answers status reads when nothing is cached yet.
func vmStatusFromRecord(vm *entity.VM) dto.VMStatusResponse {
	switch vm.Status {
	case entity.VMStatusRunning:
		return dto.NewVMStatusResponse(vm.Name, "running", "Succeeded")
	case entity.VMStatusCreating:
		return dto.NewVMStatusResponse(vm.Name, "starting", "Creating")
	case entity.VMStatusUpdating, entity.VMStatusResizing:
		return dto.NewVMStatusResponse(vm.Name, "running", "Updating")
	case entity.VMStatusDeleting:
		return dto.NewVMStatusResponse(vm.Name, "deallocating", "Deleting")
	case entity.VMStatusDeleted:
		return dto.NewVMStatusResponse(vm.Name, "deallocated", "Deleted")
	default:
		return dto.NewVMStatusResponse(vm.Name, "unknown", "Failed")
	}
}

func MaskSensitiveString(s string) string {
	if len(s) <= 8 {
		return "***********"
	}
	return s[:4] + "***********" + s[len(s)-4:]
}
