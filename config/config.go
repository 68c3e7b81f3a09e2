package config

import (
	"fmt"

	"github.com/tnqbao/gau-vm-orchestrator/registry"
)

type Config struct {
	EnvConfig *EnvConfig
	Registry  *registry.Store
}

func NewConfig() *Config {
	envConfig := LoadEnvConfig()

	reg := registry.Default()
	if envConfig.RegistryFile != "" {
		loaded, err := registry.LoadFile(envConfig.RegistryFile)
		if err != nil {
			panic(fmt.Sprintf("Failed to load VM registry: %v", err))
		}
		reg = loaded
	}

	return &Config{
		EnvConfig: envConfig,
		Registry:  registry.NewStore(reg),
	}
}
