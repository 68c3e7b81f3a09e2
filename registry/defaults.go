package registry

import "time"

// Azure resource naming
const (
	ResourceGroupPrefix = "rg"
	KeyVaultName        = "key-haec-vm-functions"
	AdminUsername       = "svcadmin"
	OSType              = "Linux"
)

const (
	APIVersion     = "1.0.0"
	APITitle       = "VM Management API"
	APIDescription = "Azure VM Management System with SSH Key Management"
)

// Data disk bounds in GB, inclusive.
const (
	MinDataDiskSizeGB = 1
	MaxDataDiskSizeGB = 32767
)

// Data disk defaults applied when a create request omits data_disk or one of its fields.
const (
	DefaultDataDiskEnabled    = true
	DefaultDataDiskSizeGB     = 200
	DefaultDataDiskMountPoint = "/opt/sbc_deploy"
	DefaultDataDiskAutoSetup  = true
)

// ImageReference identifies a marketplace image.
type ImageReference struct {
	Publisher string `json:"publisher"`
	Offer     string `json:"offer"`
	SKU       string `json:"sku"`
	Version   string `json:"version"`
}

type NetworkConfig struct {
	VNetAddressPrefix   string
	SubnetAddressPrefix string
}

// SecurityConfig holds inbound source ranges for the NSG rules the provisioning
// collaborator creates.
type SecurityConfig struct {
	AllowedSSHSources  []string
	AllowedHTTPSources []string
}

type StorageConfig struct {
	OSDiskSizeGB int
	OSDiskType   string
	DataDiskType string
}

type SSHKeyConfig struct {
	Type   string `json:"type"`
	Size   int    `json:"size"`
	Format string `json:"format"`
}

type Timeouts struct {
	VMOperation    time.Duration
	SSHConnection  time.Duration
	AzureOperation time.Duration
}

type RateLimit struct {
	Requests int
	Window   time.Duration
}

type FeatureFlags struct {
	SSHKeyManagement  bool
	DataDiskAutoMount bool
	Monitoring        bool
	Backup            bool
}

type BackupConfig struct {
	RetentionDays int
	Frequency     string
}

// KyuboTier maps a concurrent-session ceiling to a VM size.
type KyuboTier struct {
	MaxSessions int
	Size        string
}

// Monitoring metric names
const (
	MetricVMCreation       = "vm_creation_count"
	MetricVMDeletion       = "vm_deletion_count"
	MetricSSHKeyGeneration = "ssh_key_generation_count"
	MetricAPIRequest       = "api_request_count"
	MetricError            = "error_count"
)

// Health check endpoint names
const (
	HealthAzureCompute  = "azure_compute"
	HealthAzureKeyVault = "azure_keyvault"
	HealthAzureStorage  = "azure_storage"
)

func defaultTables() tables {
	return tables{
		regions: []pair{
			{"eastus", "East US"},
			{"westus", "West US"},
			{"westus2", "West US 2"},
			{"centralus", "Central US"},
			{"eastus2", "East US 2"},
			{"westeurope", "West Europe"},
			{"northeurope", "North Europe"},
		},
		sizes: []pair{
			{"small", "Standard_B1s"},
			{"medium", "Standard_B2s"},
			{"large", "Standard_B4ms"},
			{"xlarge", "Standard_D2s_v3"},
			{"xxlarge", "Standard_D4s_v3"},
			{"Standard_B1s", "Standard_B1s"},
			{"Standard_B2s", "Standard_B2s"},
			{"Standard_B4ms", "Standard_B4ms"},
			{"Standard_D2s_v3", "Standard_D2s_v3"},
			{"Standard_D4s_v3", "Standard_D4s_v3"},
		},
		environments: []string{"lab", "dev", "qa", "prod"},
		criticality:  []string{"alta", "baja", "desarrollo", "operacional"},
		kyuboTiers: []KyuboTier{
			{MaxSessions: 25, Size: "Standard_B2s"},
			{MaxSessions: 50, Size: "Standard_B4ms"},
			{MaxSessions: 75, Size: "Standard_D2s_v3"},
			{MaxSessions: 100, Size: "Standard_D4s_v3"},
		},
		defaultTags: []pair{
			{"CreatedBy", "VM-Management-System"},
			{"Environment", "Development"},
			{"Project", "VM-Management"},
		},
	}
}

func defaultSettings() Settings {
	return Settings{
		VMImage: ImageReference{
			Publisher: "erockyenterprisesoftwarefoundationinc1653071250513",
			Offer:     "rockylinux-9",
			SKU:       "rockylinux-9",
			Version:   "latest",
		},
		Network: NetworkConfig{
			VNetAddressPrefix:   "10.0.0.0/16",
			SubnetAddressPrefix: "10.0.0.0/24",
		},
		// Wildcards are open to the internet; restrict in production.
		Security: SecurityConfig{
			AllowedSSHSources:  []string{"*"},
			AllowedHTTPSources: []string{"*"},
		},
		Storage: StorageConfig{
			OSDiskSizeGB: 30,
			OSDiskType:   "Standard_LRS",
			DataDiskType: "Standard_LRS",
		},
		SSHKey: SSHKeyConfig{
			Type:   "rsa",
			Size:   2048,
			Format: "OpenSSH",
		},
		Timeouts: Timeouts{
			VMOperation:    600 * time.Second,
			SSHConnection:  30 * time.Second,
			AzureOperation: 300 * time.Second,
		},
		RateLimit: RateLimit{
			Requests: 100,
			Window:   3600 * time.Second,
		},
		Features: FeatureFlags{
			SSHKeyManagement:  true,
			DataDiskAutoMount: true,
			Monitoring:        true,
			Backup:            false,
		},
		MonitoringMetrics: []string{
			MetricVMCreation,
			MetricVMDeletion,
			MetricSSHKeyGeneration,
			MetricAPIRequest,
			MetricError,
		},
		Backup: BackupConfig{
			RetentionDays: 30,
			Frequency:     "daily",
		},
		HealthCheckEndpoints: []string{
			HealthAzureCompute,
			HealthAzureKeyVault,
			HealthAzureStorage,
		},
	}
}
