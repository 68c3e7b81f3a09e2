// Package registry holds the allowed regions, VM sizes, environments and
// criticality levels together with the operational constants handed to the
// provisioning and SSH key collaborators.
//
// A *Registry is immutable once built. Every accessor returns fresh slices
// and maps so callers can never mutate a shared snapshot.
package registry

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrNotFound = errors.New("not found in registry")

// SetName names one of the enumerated tables exposed through Lookup.
type SetName string

const (
	SetRegions      SetName = "regions"
	SetSizes        SetName = "sizes"
	SetEnvironments SetName = "environments"
	SetCriticality  SetName = "criticality"
	SetKyuboSizes   SetName = "kyubo_sizes"
	SetDefaultTags  SetName = "default_tags"
)

type pair struct {
	key   string
	value string
}

type tables struct {
	regions      []pair
	sizes        []pair
	environments []string
	criticality  []string
	kyuboTiers   []KyuboTier
	defaultTags  []pair
}

// Settings are the non-enumerated constants of a snapshot.
type Settings struct {
	VMImage              ImageReference
	Network              NetworkConfig
	Security             SecurityConfig
	Storage              StorageConfig
	SSHKey               SSHKeyConfig
	Timeouts             Timeouts
	RateLimit            RateLimit
	Features             FeatureFlags
	MonitoringMetrics    []string
	Backup               BackupConfig
	HealthCheckEndpoints []string
}

type Registry struct {
	tables    tables
	settings  Settings
	index     map[SetName]map[string]string
	canonical []string
	isCanon   map[string]struct{}
}

// Default returns the built-in snapshot.
func Default() *Registry {
	return build(defaultTables(), defaultSettings())
}

func build(t tables, s Settings) *Registry {
	t.sizes = withSelfMappedSizes(t.sizes)

	r := &Registry{
		tables:   t,
		settings: s,
		index:    make(map[SetName]map[string]string, 6),
		isCanon:  make(map[string]struct{}),
	}

	r.index[SetRegions] = indexPairs(t.regions)
	r.index[SetSizes] = indexPairs(t.sizes)
	r.index[SetEnvironments] = indexValues(t.environments)
	r.index[SetCriticality] = indexValues(t.criticality)
	r.index[SetDefaultTags] = indexPairs(t.defaultTags)

	kyubo := make(map[string]string, len(t.kyuboTiers))
	for _, tier := range t.kyuboTiers {
		kyubo[strconv.Itoa(tier.MaxSessions)] = tier.Size
	}
	r.index[SetKyuboSizes] = kyubo

	for _, p := range t.sizes {
		if _, ok := r.isCanon[p.value]; ok {
			continue
		}
		r.isCanon[p.value] = struct{}{}
		r.canonical = append(r.canonical, p.value)
	}

	return r
}

// withSelfMappedSizes appends a self-mapping for every canonical size that is
// not already a key.
func withSelfMappedSizes(sizes []pair) []pair {
	keys := make(map[string]struct{}, len(sizes))
	for _, p := range sizes {
		keys[p.key] = struct{}{}
	}
	out := append([]pair(nil), sizes...)
	for _, p := range sizes {
		if _, ok := keys[p.value]; !ok {
			keys[p.value] = struct{}{}
			out = append(out, pair{key: p.value, value: p.value})
		}
	}
	return out
}

func indexPairs(pairs []pair) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.key] = p.value
	}
	return m
}

func indexValues(values []string) map[string]string {
	m := make(map[string]string, len(values))
	for _, v := range values {
		m[v] = v
	}
	return m
}

// Lookup returns the value stored under key in the named set.
func (r *Registry) Lookup(set SetName, key string) (string, error) {
	m, ok := r.index[set]
	if !ok {
		return "", fmt.Errorf("set %q: %w", set, ErrNotFound)
	}
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("key %q in set %q: %w", key, set, ErrNotFound)
	}
	return v, nil
}

func (r *Registry) has(set SetName, key string) bool {
	_, ok := r.index[set][key]
	return ok
}

// Regions returns region codes in declaration order.
func (r *Registry) Regions() []string {
	return keys(r.tables.regions)
}

func (r *Registry) RegionName(code string) (string, bool) {
	name, ok := r.index[SetRegions][code]
	return name, ok
}

func (r *Registry) HasRegion(code string) bool {
	return r.has(SetRegions, code)
}

// RegionTable returns a copy of the code to display name table.
func (r *Registry) RegionTable() map[string]string {
	return indexPairs(r.tables.regions)
}

// Sizes returns every accepted size key (aliases and self-mapped canonical ids).
func (r *Registry) Sizes() []string {
	return keys(r.tables.sizes)
}

// CanonicalSizes returns the distinct canonical size identifiers.
func (r *Registry) CanonicalSizes() []string {
	return append([]string(nil), r.canonical...)
}

// SizeTable returns a copy of the alias to canonical size table.
func (r *Registry) SizeTable() map[string]string {
	return indexPairs(r.tables.sizes)
}

// ResolveSize maps an alias or canonical identifier to its canonical
// identifier. Alias lookup wins; a canonical identifier resolves to itself.
func (r *Registry) ResolveSize(s string) (string, bool) {
	if canonical, ok := r.index[SetSizes][s]; ok {
		return canonical, true
	}
	if _, ok := r.isCanon[s]; ok {
		return s, true
	}
	return "", false
}

// SizeChoices is the union of size keys and canonical identifiers, without
// duplicates, keys first.
func (r *Registry) SizeChoices() []string {
	out := r.Sizes()
	seen := make(map[string]struct{}, len(out))
	for _, k := range out {
		seen[k] = struct{}{}
	}
	for _, c := range r.canonical {
		if _, ok := seen[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Environments() []string {
	return append([]string(nil), r.tables.environments...)
}

func (r *Registry) HasEnvironment(env string) bool {
	return r.has(SetEnvironments, env)
}

func (r *Registry) CriticalityLevels() []string {
	return append([]string(nil), r.tables.criticality...)
}

func (r *Registry) HasCriticality(level string) bool {
	return r.has(SetCriticality, level)
}

func (r *Registry) KyuboTiers() []KyuboTier {
	return append([]KyuboTier(nil), r.tables.kyuboTiers...)
}

// KyuboSize picks the smallest tier able to hold sessions. Requests above the
// largest tier get the largest size.
func (r *Registry) KyuboSize(sessions int) string {
	tiers := r.tables.kyuboTiers
	if len(tiers) == 0 {
		return ""
	}
	best := -1
	for i, tier := range tiers {
		if tier.MaxSessions < sessions {
			continue
		}
		if best < 0 || tier.MaxSessions < tiers[best].MaxSessions {
			best = i
		}
	}
	if best >= 0 {
		return tiers[best].Size
	}
	largest := 0
	for i, tier := range tiers {
		if tier.MaxSessions > tiers[largest].MaxSessions {
			largest = i
		}
	}
	return tiers[largest].Size
}

// DefaultTags builds a new map on every call.
func (r *Registry) DefaultTags() map[string]string {
	return indexPairs(r.tables.defaultTags)
}

// Settings returns a deep copy of the snapshot constants.
func (r *Registry) Settings() Settings {
	s := r.settings
	s.Security.AllowedSSHSources = append([]string(nil), s.Security.AllowedSSHSources...)
	s.Security.AllowedHTTPSources = append([]string(nil), s.Security.AllowedHTTPSources...)
	s.MonitoringMetrics = append([]string(nil), s.MonitoringMetrics...)
	s.HealthCheckEndpoints = append([]string(nil), s.HealthCheckEndpoints...)
	return s
}

func keys(pairs []pair) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.key)
	}
	return out
}
