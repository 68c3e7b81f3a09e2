package dto

import "github.com/tnqbao/gau-vm-orchestrator/validation"

// Response field names are consumed by external clients; add, never rename.

type VMResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Region    string            `json:"region"`
	Size      string            `json:"size"`
	Status    string            `json:"status"`
	PrivateIP *string           `json:"private_ip"`
	PublicIP  *string           `json:"public_ip"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt *string           `json:"updated_at"`
	Tags      map[string]string `json:"tags"`
}

type ErrorResponse struct {
	Error   bool           `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func NewErrorResponse(message string, details map[string]any) ErrorResponse {
	return ErrorResponse{
		Error:   true,
		Message: message,
		Details: details,
	}
}

// ViolationResponse renders a validation failure.
func ViolationResponse(v *validation.Violation) ErrorResponse {
	return NewErrorResponse(v.Error(), v.Details())
}

type OperationResponse struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	OperationID *string        `json:"operation_id"`
	Data        map[string]any `json:"data"`
}

func NewOperationResponse(success bool, message, operationID string, data map[string]any) OperationResponse {
	resp := OperationResponse{
		Success: success,
		Message: message,
		Data:    data,
	}
	if operationID != "" {
		resp.OperationID = &operationID
	}
	return resp
}

type SSHKeyResponse struct {
	VMID             string `json:"vm_id"`
	VMName           string `json:"vm_name"`
	PrivateKey       string `json:"private_key"`
	PublicKey        string `json:"public_key"`
	Username         string `json:"username"`
	ConnectionString string `json:"connection_string"`
}

type SSHCommandResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

type VMStatusResponse struct {
	Name              string           `json:"name"`
	PowerState        string           `json:"power_state"`
	ProvisioningState string           `json:"provisioning_state"`
	Statuses          []map[string]any `json:"statuses"`
}

func NewVMStatusResponse(name, powerState, provisioningState string) VMStatusResponse {
	return VMStatusResponse{
		Name:              name,
		PowerState:        powerState,
		ProvisioningState: provisioningState,
		Statuses:          []map[string]any{},
	}
}

type KyuboVMResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
