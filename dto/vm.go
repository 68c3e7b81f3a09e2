package dto

import (
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/validation"
)

// DataDiskConfig describes the optional data disk attached at creation.
type DataDiskConfig struct {
	Enabled      bool   `json:"enabled"`
	SizeGB       int    `json:"size_gb"`
	MountPoint   string `json:"mount_point"`
	AutoSetupSBC bool   `json:"auto_setup_sbc"`
}

// NewDataDiskConfig returns a new default data disk.
func NewDataDiskConfig() *DataDiskConfig {
	return &DataDiskConfig{
		Enabled:      registry.DefaultDataDiskEnabled,
		SizeGB:       registry.DefaultDataDiskSizeGB,
		MountPoint:   registry.DefaultDataDiskMountPoint,
		AutoSetupSBC: registry.DefaultDataDiskAutoSetup,
	}
}

type VMCreateRequest struct {
	Name     string            `json:"name"`
	Region   string            `json:"region"`
	Size     string            `json:"size"`
	Tags     map[string]string `json:"tags"`
	DataDisk *DataDiskConfig   `json:"data_disk"`
}

// VMRequest is the older name of VMCreateRequest.
type VMRequest = VMCreateRequest

type VMUpdateRequest struct {
	Tags map[string]string `json:"tags,omitempty"`
}

type VMResizeRequest struct {
	Size string `json:"size"`
}

var dataDiskSchema = &validation.Schema[DataDiskConfig]{
	Name: "DataDiskConfig",
	Fields: []validation.Field[DataDiskConfig]{
		{
			Name:    "enabled",
			Default: func(d *DataDiskConfig) { d.Enabled = registry.DefaultDataDiskEnabled },
			Apply: func(raw any, d *DataDiskConfig) (err error) {
				d.Enabled, err = validation.Bool("enabled", raw)
				return err
			},
		},
		{
			Name:    "size_gb",
			Default: func(d *DataDiskConfig) { d.SizeGB = registry.DefaultDataDiskSizeGB },
			Apply: func(raw any, d *DataDiskConfig) error {
				n, err := validation.IntRange("size_gb", raw,
					validation.Bound(registry.MinDataDiskSizeGB), validation.Bound(registry.MaxDataDiskSizeGB))
				d.SizeGB = int(n)
				return err
			},
		},
		{
			Name:    "mount_point",
			Default: func(d *DataDiskConfig) { d.MountPoint = registry.DefaultDataDiskMountPoint },
			Apply: func(raw any, d *DataDiskConfig) (err error) {
				d.MountPoint, err = validation.String("mount_point", raw)
				return err
			},
		},
		{
			Name:    "auto_setup_sbc",
			Default: func(d *DataDiskConfig) { d.AutoSetupSBC = registry.DefaultDataDiskAutoSetup },
			Apply: func(raw any, d *DataDiskConfig) (err error) {
				d.AutoSetupSBC, err = validation.Bool("auto_setup_sbc", raw)
				return err
			},
		},
	},
}

// ParseDataDiskConfig validates a data disk object on its own.
func ParseDataDiskConfig(raw map[string]any) (*DataDiskConfig, error) {
	return dataDiskSchema.Validate(raw)
}

func vmCreateSchema(reg *registry.Registry) *validation.Schema[VMCreateRequest] {
	return &validation.Schema[VMCreateRequest]{
		Name: "VMCreateRequest",
		Fields: []validation.Field[VMCreateRequest]{
			{
				Name:     "name",
				Required: true,
				Apply: func(raw any, r *VMCreateRequest) (err error) {
					r.Name, err = validation.ResourceName("name", raw)
					return err
				},
			},
			{
				Name:     "region",
				Required: true,
				Apply: func(raw any, r *VMCreateRequest) (err error) {
					r.Region, err = checkRegion(reg, "region", raw)
					return err
				},
			},
			{
				Name:     "size",
				Required: true,
				Apply: func(raw any, r *VMCreateRequest) (err error) {
					r.Size, err = resolveSize(reg, "size", raw)
					return err
				},
			},
			{
				Name:    "tags",
				Default: func(r *VMCreateRequest) { r.Tags = map[string]string{} },
				Apply: func(raw any, r *VMCreateRequest) (err error) {
					r.Tags, err = validation.StringMap("tags", raw)
					return err
				},
			},
			{
				Name:    "data_disk",
				Default: func(r *VMCreateRequest) { r.DataDisk = NewDataDiskConfig() },
				Apply: func(raw any, r *VMCreateRequest) error {
					obj, err := validation.Object("data_disk", raw)
					if err != nil {
						return err
					}
					disk, err := dataDiskSchema.Validate(obj)
					if err != nil {
						return validation.Nested("data_disk", err)
					}
					r.DataDisk = disk
					return nil
				},
			},
		},
	}
}

var vmUpdateSchema = &validation.Schema[VMUpdateRequest]{
	Name:   "VMUpdateRequest",
	Strict: true,
	Fields: []validation.Field[VMUpdateRequest]{
		{
			Name: "tags",
			Apply: func(raw any, r *VMUpdateRequest) (err error) {
				r.Tags, err = validation.StringMap("tags", raw)
				return err
			},
		},
	},
}

func vmResizeSchema(reg *registry.Registry) *validation.Schema[VMResizeRequest] {
	return &validation.Schema[VMResizeRequest]{
		Name: "VMResizeRequest",
		Fields: []validation.Field[VMResizeRequest]{
			{
				Name:     "size",
				Required: true,
				Apply: func(raw any, r *VMResizeRequest) (err error) {
					r.Size, err = resolveSize(reg, "size", raw)
					return err
				},
			},
		},
	}
}

func ParseVMCreateRequest(reg *registry.Registry, raw map[string]any) (*VMCreateRequest, error) {
	return vmCreateSchema(reg).Validate(raw)
}

// ParseVMUpdateRequest rejects any key other than tags. Absent tags stay nil.
func ParseVMUpdateRequest(raw map[string]any) (*VMUpdateRequest, error) {
	return vmUpdateSchema.Validate(raw)
}

func ParseVMResizeRequest(reg *registry.Registry, raw map[string]any) (*VMResizeRequest, error) {
	return vmResizeSchema(reg).Validate(raw)
}
