package entity

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "PENDING"
	OperationStatusSucceeded OperationStatus = "SUCCEEDED"
	OperationStatusFailed    OperationStatus = "FAILED"
)

// Operation tracks one asynchronous action handed to a worker.
type Operation struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Action    string          `json:"action" gorm:"type:varchar(32);not null"`
	VMName    string          `json:"vm_name" gorm:"not null;index"`
	Status    OperationStatus `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index"`
	Message   string          `json:"message"`
	Request   datatypes.JSON  `json:"request"`
	Result    datatypes.JSON  `json:"result"`
	OwnerID   uuid.UUID       `json:"owner_id" gorm:"type:uuid;index"`
	CreatedAt string          `json:"created_at" gorm:"not null"`
	UpdatedAt *string         `json:"updated_at"`
}

func (o *Operation) Settled() bool {
	return o.Status == OperationStatusSucceeded || o.Status == OperationStatusFailed
}
