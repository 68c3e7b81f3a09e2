package dto

import (
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/validation"
)

// CreateKyuboVMRequest provisions a session host sized by its expected load.
type CreateKyuboVMRequest struct {
	Tenant                string `json:"tenant"`
	Region                string `json:"region"`
	MaxConcurrentSessions int    `json:"max_concurrent_sessions"`
	RequestID             string `json:"request_id"`
	Entorno               string `json:"entorno"`
}

// CreateSoloVMRequest provisions a single client VM.
type CreateSoloVMRequest struct {
	Cliente    string `json:"cliente"`
	Entorno    string `json:"entorno"`
	Criticidad string `json:"criticidad"`
	Size       string `json:"size"`
	Region     string `json:"region"`
}

func kyuboSchema(reg *registry.Registry) *validation.Schema[CreateKyuboVMRequest] {
	return &validation.Schema[CreateKyuboVMRequest]{
		Name: "CreateKyuboVMRequest",
		Fields: []validation.Field[CreateKyuboVMRequest]{
			{
				Name:     "tenant",
				Required: true,
				Apply: func(raw any, r *CreateKyuboVMRequest) (err error) {
					r.Tenant, err = validation.NonEmptyString("tenant", raw)
					return err
				},
			},
			{
				Name:     "region",
				Required: true,
				Apply: func(raw any, r *CreateKyuboVMRequest) (err error) {
					r.Region, err = checkRegion(reg, "region", raw)
					return err
				},
			},
			{
				Name:     "max_concurrent_sessions",
				Required: true,
				Apply: func(raw any, r *CreateKyuboVMRequest) error {
					n, err := validation.IntRange("max_concurrent_sessions", raw, validation.Bound(1), nil)
					r.MaxConcurrentSessions = int(n)
					return err
				},
			},
			{
				Name:     "request_id",
				Required: true,
				Apply: func(raw any, r *CreateKyuboVMRequest) (err error) {
					r.RequestID, err = validation.NonEmptyString("request_id", raw)
					return err
				},
			},
			{
				Name:     "entorno",
				Required: true,
				Apply: func(raw any, r *CreateKyuboVMRequest) (err error) {
					r.Entorno, err = checkEntorno(reg, "entorno", raw)
					return err
				},
			},
		},
	}
}

func soloSchema(reg *registry.Registry) *validation.Schema[CreateSoloVMRequest] {
	return &validation.Schema[CreateSoloVMRequest]{
		Name: "CreateSoloVMRequest",
		Fields: []validation.Field[CreateSoloVMRequest]{
			{
				Name:     "cliente",
				Required: true,
				Apply: func(raw any, r *CreateSoloVMRequest) (err error) {
					r.Cliente, err = validation.NonEmptyString("cliente", raw)
					return err
				},
			},
			{
				Name:     "entorno",
				Required: true,
				Apply: func(raw any, r *CreateSoloVMRequest) (err error) {
					r.Entorno, err = checkEntorno(reg, "entorno", raw)
					return err
				},
			},
			{
				Name:     "criticidad",
				Required: true,
				Apply: func(raw any, r *CreateSoloVMRequest) (err error) {
					r.Criticidad, err = checkCriticidad(reg, "criticidad", raw)
					return err
				},
			},
			{
				Name:     "size",
				Required: true,
				Apply: func(raw any, r *CreateSoloVMRequest) (err error) {
					r.Size, err = resolveSize(reg, "size", raw)
					return err
				},
			},
			{
				Name:     "region",
				Required: true,
				Apply: func(raw any, r *CreateSoloVMRequest) (err error) {
					r.Region, err = checkRegion(reg, "region", raw)
					return err
				},
			},
		},
	}
}

func ParseCreateKyuboVMRequest(reg *registry.Registry, raw map[string]any) (*CreateKyuboVMRequest, error) {
	return kyuboSchema(reg).Validate(raw)
}

func ParseCreateSoloVMRequest(reg *registry.Registry, raw map[string]any) (*CreateSoloVMRequest, error) {
	return soloSchema(reg).Validate(raw)
}
