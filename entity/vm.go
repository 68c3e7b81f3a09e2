package entity

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type VMStatus string

const (
	VMStatusCreating VMStatus = "creating"
	VMStatusRunning  VMStatus = "running"
	VMStatusUpdating VMStatus = "updating"
	VMStatusResizing VMStatus = "resizing"
	VMStatusDeleting VMStatus = "deleting"
	VMStatusDeleted  VMStatus = "deleted"
	VMStatusError    VMStatus = "error"
)

// VMKind records which endpoint provisioned the VM.
type VMKind string

const (
	VMKindStandard VMKind = "standard"
	VMKindKyubo    VMKind = "kyubo"
	VMKindSolo     VMKind = "solo"
)

type DataDisk struct {
	Enabled      bool   `json:"enabled"`
	SizeGB       int    `json:"size_gb"`
	MountPoint   string `json:"mount_point"`
	AutoSetupSBC bool   `json:"auto_setup_sbc"`
}

type VM struct {
	ID              uuid.UUID                             `json:"id" gorm:"type:uuid;primaryKey"`
	Name            string                                `json:"name" gorm:"uniqueIndex;not null"`
	Kind            VMKind                                `json:"kind" gorm:"type:varchar(16);not null;default:'standard'"`
	Region          string                                `json:"region" gorm:"not null"`
	Size            string                                `json:"size" gorm:"not null"`
	Status          VMStatus                              `json:"status" gorm:"type:varchar(16);not null;index"`
	ResourceGroup   string                                `json:"resource_group" gorm:"not null"`
	PrivateIP       *string                               `json:"private_ip"`
	PublicIP        *string                               `json:"public_ip"`
	Tags            datatypes.JSONType[map[string]string] `json:"tags"`
	DataDisk        datatypes.JSONType[*DataDisk]         `json:"data_disk"`
	RequestID       string                                `json:"request_id" gorm:"index"`
	IPCommunication string                                `json:"ip_communication"`
	OwnerID         uuid.UUID                             `json:"owner_id" gorm:"type:uuid;index"`
	CreatedAt       string                                `json:"created_at" gorm:"not null"`
	UpdatedAt       *string                               `json:"updated_at"`
}
