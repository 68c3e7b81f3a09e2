package repository

import (
	"github.com/tnqbao/gau-vm-orchestrator/infra"
	"gorm.io/gorm"
)

type Repository struct {
	VMRepo        *VMRepository
	OperationRepo *OperationRepository
}

func InitRepository(infra *infra.Infra) *Repository {
	return NewRepository(infra.Postgres.DB)
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		VMRepo:        NewVMRepository(db),
		OperationRepo: NewOperationRepository(db),
	}
}

func (r *Repository) BeginTransaction(db *gorm.DB) *gorm.DB {
	return db.Begin()
}

func (r *Repository) WithTransaction(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}
