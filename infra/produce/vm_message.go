package produce

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/tnqbao/gau-vm-orchestrator/dto"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
)

var ErrNoSubscription = errors.New("azure subscription id is required to provision")

// Azure Linux VM names are limited to 64 characters.
const maxVMNameLength = 64

type Action string

const (
	ActionCreate      Action = "create"
	ActionCreateKyubo Action = "create_kyubo"
	ActionCreateSolo  Action = "create_solo"
	ActionUpdate      Action = "update"
	ActionResize      Action = "resize"
	ActionDelete      Action = "delete"
	ActionCommand     Action = "command"
	ActionPlaybook    Action = "playbook"
)

// Creates reports whether the action brings up a new VM.
func (a Action) Creates() bool {
	return a == ActionCreate || a == ActionCreateKyubo || a == ActionCreateSolo
}

type DataDiskSpec struct {
	Enabled      bool   `json:"enabled"`
	SizeGB       int    `json:"size_gb"`
	MountPoint   string `json:"mount_point"`
	AutoSetupSBC bool   `json:"auto_setup_sbc"`
	AutoMount    bool   `json:"auto_mount"`
	Type         string `json:"type"`
}

type OSDiskSpec struct {
	SizeGB int    `json:"size_gb"`
	Type   string `json:"type"`
}

type NetworkSpec struct {
	VNetAddressPrefix   string   `json:"vnet_address_prefix"`
	SubnetAddressPrefix string   `json:"subnet_address_prefix"`
	AllowedSSHSources   []string `json:"allowed_ssh_sources"`
	AllowedHTTPSources  []string `json:"allowed_http_sources"`
}

// ProvisionMessage is everything the provisioning worker needs to act on
// one VM without consulting the registry itself.
type ProvisionMessage struct {
	OperationID    string                   `json:"operation_id"`
	Action         Action                   `json:"action"`
	SubscriptionID string                   `json:"subscription_id"`
	ResourceGroup  string                   `json:"resource_group"`
	VMName         string                   `json:"vm_name"`
	Region         string                   `json:"region,omitempty"`
	Size           string                   `json:"size,omitempty"`
	Tags           map[string]string        `json:"tags,omitempty"`
	Image          *registry.ImageReference `json:"image,omitempty"`
	OSType         string                   `json:"os_type,omitempty"`
	AdminUsername  string                   `json:"admin_username,omitempty"`
	OSDisk         *OSDiskSpec              `json:"os_disk,omitempty"`
	DataDisk       *DataDiskSpec            `json:"data_disk,omitempty"`
	Network        *NetworkSpec             `json:"network,omitempty"`
	SSHKey         *registry.SSHKeyConfig   `json:"ssh_key,omitempty"`
	SSHPublicKey   string                   `json:"ssh_public_key,omitempty"`
	TimeoutSeconds int                      `json:"timeout_seconds"`
	Timestamp      int64                    `json:"timestamp"`
}

// ExecutionMessage runs a shell command or an Ansible playbook on a VM.
type ExecutionMessage struct {
	OperationID    string         `json:"operation_id"`
	Action         Action         `json:"action"`
	VMName         string         `json:"vm_name"`
	Host           string         `json:"host"`
	Username       string         `json:"username"`
	Command        string         `json:"command,omitempty"`
	Playbook       string         `json:"playbook,omitempty"`
	ExtraVars      map[string]any `json:"extra_vars"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	Timestamp      int64          `json:"timestamp"`
}

// ResultMessage is received from the workers once an operation settles.
type ResultMessage struct {
	OperationID       string                  `json:"operation_id"`
	Action            Action                  `json:"action"`
	VMName            string                  `json:"vm_name"`
	Success           bool                    `json:"success"`
	Error             string                  `json:"error,omitempty"`
	PowerState        string                  `json:"power_state,omitempty"`
	ProvisioningState string                  `json:"provisioning_state,omitempty"`
	PrivateIP         string                  `json:"private_ip,omitempty"`
	PublicIP          string                  `json:"public_ip,omitempty"`
	Statuses          []map[string]any        `json:"statuses,omitempty"`
	Output            *dto.SSHCommandResponse `json:"output,omitempty"`
	Timestamp         int64                   `json:"timestamp"`
}

// VMSpec is a validated, normalized VM definition.
type VMSpec struct {
	Name     string
	Region   string
	Size     string
	Tags     map[string]string
	DataDisk *dto.DataDiskConfig
}

func SpecFromCreate(req *dto.VMCreateRequest) VMSpec {
	return VMSpec{
		Name:     req.Name,
		Region:   req.Region,
		Size:     req.Size,
		Tags:     req.Tags,
		DataDisk: req.DataDisk,
	}
}

// SpecFromKyubo sizes the VM by its session ceiling. suffix keeps names unique
// across requests for the same tenant.
func SpecFromKyubo(reg *registry.Registry, req *dto.CreateKyuboVMRequest, suffix string) VMSpec {
	return VMSpec{
		Name:   SuffixedVMName(suffix, "kyubo", req.Tenant, req.Entorno),
		Region: req.Region,
		Size:   reg.KyuboSize(req.MaxConcurrentSessions),
		Tags: map[string]string{
			"Tenant":                req.Tenant,
			"Environment":           req.Entorno,
			"RequestId":             req.RequestID,
			"MaxConcurrentSessions": strconv.Itoa(req.MaxConcurrentSessions),
			"Workload":              "kyubo",
		},
		DataDisk: dto.NewDataDiskConfig(),
	}
}

func SpecFromSolo(req *dto.CreateSoloVMRequest, suffix string) VMSpec {
	return VMSpec{
		Name:   SuffixedVMName(suffix, "solo", req.Cliente, req.Entorno),
		Region: req.Region,
		Size:   req.Size,
		Tags: map[string]string{
			"Cliente":     req.Cliente,
			"Environment": req.Entorno,
			"Criticidad":  req.Criticidad,
			"Workload":    "solo",
		},
		DataDisk: dto.NewDataDiskConfig(),
	}
}

// VMName joins parts into a lowercase Azure-safe name.
func VMName(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		part = strings.Trim(sanitize(part), "-")
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('-')
		}
		b.WriteString(part)
	}
	name := b.String()
	if len(name) > maxVMNameLength {
		name = strings.TrimRight(name[:maxVMNameLength], "-")
	}
	return name
}

// SuffixedVMName is VMName(parts...) followed by suffix. The leading parts
// are shortened to fit so the suffix always survives whole.
func SuffixedVMName(suffix string, parts ...string) string {
	suffix = VMName(suffix)
	if suffix == "" {
		return VMName(parts...)
	}
	base := VMName(parts...)
	room := maxVMNameLength - len(suffix) - 1
	if room <= 0 {
		return suffix
	}
	if len(base) > room {
		base = strings.TrimRight(base[:room], "-")
	}
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, s)
}

func ResourceGroupName(vmName string) string {
	return fmt.Sprintf("%s-%s", registry.ResourceGroupPrefix, vmName)
}

// MergeTags overlays request tags on the registry defaults.
func MergeTags(defaults, tags map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(tags))
	maps.Copy(merged, defaults)
	maps.Copy(merged, tags)
	return merged
}

// NewProvisionMessage fills a message for action from the registry snapshot.
// Create actions carry the full VM definition; update, resize and delete carry
// only what they change.
func NewProvisionMessage(reg *registry.Registry, subscriptionID, operationID string, action Action, spec VMSpec) (ProvisionMessage, error) {
	if subscriptionID == "" {
		return ProvisionMessage{}, ErrNoSubscription
	}

	settings := reg.Settings()
	msg := ProvisionMessage{
		OperationID:    operationID,
		Action:         action,
		SubscriptionID: subscriptionID,
		ResourceGroup:  ResourceGroupName(spec.Name),
		VMName:         spec.Name,
		TimeoutSeconds: int(settings.Timeouts.AzureOperation.Seconds()),
	}

	switch {
	case action.Creates():
		image := settings.VMImage
		sshKey := settings.SSHKey
		msg.Region = spec.Region
		msg.Size = spec.Size
		msg.Tags = MergeTags(reg.DefaultTags(), spec.Tags)
		msg.Image = &image
		msg.OSType = registry.OSType
		msg.AdminUsername = registry.AdminUsername
		msg.OSDisk = &OSDiskSpec{
			SizeGB: settings.Storage.OSDiskSizeGB,
			Type:   settings.Storage.OSDiskType,
		}
		msg.Network = &NetworkSpec{
			VNetAddressPrefix:   settings.Network.VNetAddressPrefix,
			SubnetAddressPrefix: settings.Network.SubnetAddressPrefix,
			AllowedSSHSources:   settings.Security.AllowedSSHSources,
			AllowedHTTPSources:  settings.Security.AllowedHTTPSources,
		}
		msg.SSHKey = &sshKey
		msg.TimeoutSeconds = int(settings.Timeouts.VMOperation.Seconds())
		if disk := spec.DataDisk; disk != nil && disk.Enabled {
			msg.DataDisk = &DataDiskSpec{
				Enabled:      disk.Enabled,
				SizeGB:       disk.SizeGB,
				MountPoint:   disk.MountPoint,
				AutoSetupSBC: disk.AutoSetupSBC,
				AutoMount:    settings.Features.DataDiskAutoMount,
				Type:         settings.Storage.DataDiskType,
			}
		}
	case action == ActionUpdate:
		msg.Tags = spec.Tags
	case action == ActionResize:
		msg.Size = spec.Size
	}

	return msg, nil
}

// NewCommandMessage runs req.Command, or req.Playbook when no command is given.
func NewCommandMessage(reg *registry.Registry, operationID, vmName, host string, req *dto.SSHCommandRequest) ExecutionMessage {
	msg := newExecutionMessage(reg, operationID, vmName, host, req.ExtraVars)
	if req.Command != "" {
		msg.Action = ActionCommand
		msg.Command = req.Command
		return msg
	}
	msg.Action = ActionPlaybook
	msg.Playbook = req.Playbook
	return msg
}

func NewPlaybookMessage(reg *registry.Registry, operationID, vmName, host string, req *dto.PlaybookRequest) ExecutionMessage {
	msg := newExecutionMessage(reg, operationID, vmName, host, req.ExtraVars)
	msg.Action = ActionPlaybook
	msg.Playbook = req.Playbook
	return msg
}

func newExecutionMessage(reg *registry.Registry, operationID, vmName, host string, extraVars map[string]any) ExecutionMessage {
	if extraVars == nil {
		extraVars = map[string]any{}
	}
	return ExecutionMessage{
		OperationID:    operationID,
		VMName:         vmName,
		Host:           host,
		Username:       registry.AdminUsername,
		ExtraVars:      extraVars,
		TimeoutSeconds: int(reg.Settings().Timeouts.SSHConnection.Seconds()),
	}
}
