package repository

import (
	"github.com/google/uuid"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"gorm.io/gorm"
)

type OperationRepository struct {
	db *gorm.DB
}

func NewOperationRepository(db *gorm.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

func (r *OperationRepository) Create(op *entity.Operation) error {
	return r.db.Create(op).Error
}

func (r *OperationRepository) Update(op *entity.Operation) error {
	return r.db.Save(op).Error
}

func (r *OperationRepository) FindByID(id uuid.UUID) (*entity.Operation, error) {
	var op entity.Operation
	err := r.db.Where("id = ?", id).First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// ListByVMName returns the newest operations on vmName; a nil owner matches
// every owner.
func (r *OperationRepository) ListByVMName(vmName string, owner *uuid.UUID, limit int) ([]entity.Operation, error) {
	query := r.db.Where("vm_name = ?", vmName)
	if owner != nil {
		query = query.Where("owner_id = ?", *owner)
	}

	var ops []entity.Operation
	err := query.Order("created_at DESC").Limit(limit).Find(&ops).Error
	if err != nil {
		return nil, err
	}
	return ops, nil
}
