package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"gorm.io/gorm"
)

type VMRepository struct {
	db *gorm.DB
}

func NewVMRepository(db *gorm.DB) *VMRepository {
	return &VMRepository{db: db}
}

func (r *VMRepository) Create(vm *entity.VM) error {
	return r.db.Create(vm).Error
}

func (r *VMRepository) Update(vm *entity.VM) error {
	return r.db.Save(vm).Error
}

// FindByName ignores VMs that have been deleted.
func (r *VMRepository) FindByName(name string) (*entity.VM, error) {
	var vm entity.VM
	err := r.db.Where("name = ? AND status <> ?", name, entity.VMStatusDeleted).First(&vm).Error
	if err != nil {
		return nil, err
	}
	return &vm, nil
}

func (r *VMRepository) FindByRequestID(requestID string) (*entity.VM, error) {
	var vm entity.VM
	err := r.db.Where("request_id = ? AND status <> ?", requestID, entity.VMStatusDeleted).First(&vm).Error
	if err != nil {
		return nil, err
	}
	return &vm, nil
}

// List returns live VMs, newest first. An empty status matches all of them
// and a nil owner matches every owner.
func (r *VMRepository) List(status entity.VMStatus, owner *uuid.UUID, limit, offset int) ([]entity.VM, int64, error) {
	query := r.db.Model(&entity.VM{}).Where("status <> ?", entity.VMStatusDeleted)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if owner != nil {
		query = query.Where("owner_id = ?", *owner)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var vms []entity.VM
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&vms).Error
	if err != nil {
		return nil, 0, err
	}
	return vms, total, nil
}

// ExistsByName counts deleted VMs too, since the name is a unique key.
func (r *VMRepository) ExistsByName(name string) (bool, error) {
	var count int64
	err := r.db.Model(&entity.VM{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *VMRepository) UpdateStatus(name string, status entity.VMStatus, updatedAt string) error {
	return r.db.Model(&entity.VM{}).
		Where("name = ?", name).
		Updates(map[string]any{"status": status, "updated_at": updatedAt}).Error
}

// DeleteByName drops a record whose name must be freed for reuse.
func (r *VMRepository) DeleteByName(name string) error {
	return r.db.Where("name = ?", name).Delete(&entity.VM{}).Error
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
