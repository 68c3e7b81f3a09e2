package dto

import (
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/validation"
)

func checkRegion(reg *registry.Registry, field string, raw any) (string, error) {
	s, err := validation.String(field, raw)
	if err != nil {
		return "", err
	}
	if !reg.HasRegion(s) {
		return "", validation.NotMember(field, s, reg.Regions())
	}
	return s, nil
}

// resolveSize tries the alias table first, then canonical identifiers.
func resolveSize(reg *registry.Registry, field string, raw any) (string, error) {
	s, err := validation.String(field, raw)
	if err != nil {
		return "", err
	}
	canonical, ok := reg.ResolveSize(s)
	if !ok {
		return "", validation.NotMember(field, s, reg.SizeChoices())
	}
	return canonical, nil
}

func checkEntorno(reg *registry.Registry, field string, raw any) (string, error) {
	s, err := validation.String(field, raw)
	if err != nil {
		return "", err
	}
	if !reg.HasEnvironment(s) {
		return "", validation.NotMember(field, s, reg.Environments())
	}
	return s, nil
}

func checkCriticidad(reg *registry.Registry, field string, raw any) (string, error) {
	s, err := validation.String(field, raw)
	if err != nil {
		return "", err
	}
	if !reg.HasCriticality(s) {
		return "", validation.NotMember(field, s, reg.CriticalityLevels())
	}
	return s, nil
}
