package registry

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Store hands out the current snapshot. Replacing it never touches a
// snapshot already handed out, so in-flight validations finish against a
// consistent view.
type Store struct {
	current atomic.Pointer[Registry]
}

func NewStore(r *Registry) *Store {
	if r == nil {
		r = Default()
	}
	s := &Store{}
	s.current.Store(r)
	return s
}

func (s *Store) Snapshot() *Registry {
	return s.current.Load()
}

func (s *Store) Replace(r *Registry) error {
	if r == nil {
		return errors.New("registry snapshot cannot be nil")
	}
	s.current.Store(r)
	return nil
}

// Overrides replaces whole tables of the built-in snapshot. Empty tables keep
// the defaults.
type Overrides struct {
	Regions      []RegionEntry `mapstructure:"regions"`
	Sizes        []SizeEntry   `mapstructure:"sizes"`
	Environments []string      `mapstructure:"environments"`
	Criticality  []string      `mapstructure:"criticality"`
}

type RegionEntry struct {
	Code string `mapstructure:"code"`
	Name string `mapstructure:"name"`
}

type SizeEntry struct {
	Alias string `mapstructure:"alias"`
	Size  string `mapstructure:"size"`
}

// Override builds a new snapshot from r with the given tables swapped in.
func (r *Registry) Override(o Overrides) (*Registry, error) {
	t := r.tables

	if len(o.Regions) > 0 {
		regions := make([]pair, 0, len(o.Regions))
		for i, e := range o.Regions {
			if e.Code == "" {
				return nil, fmt.Errorf("regions[%d]: code cannot be empty", i)
			}
			name := e.Name
			if name == "" {
				name = e.Code
			}
			regions = append(regions, pair{key: e.Code, value: name})
		}
		if err := checkUniqueKeys("regions", regions); err != nil {
			return nil, err
		}
		t.regions = regions
	}

	if len(o.Sizes) > 0 {
		sizes := make([]pair, 0, len(o.Sizes))
		for i, e := range o.Sizes {
			if e.Alias == "" || e.Size == "" {
				return nil, fmt.Errorf("sizes[%d]: alias and size are required", i)
			}
			sizes = append(sizes, pair{key: e.Alias, value: e.Size})
		}
		if err := checkUniqueKeys("sizes", sizes); err != nil {
			return nil, err
		}
		t.sizes = sizes
	}

	if len(o.Environments) > 0 {
		if err := checkUniqueValues("environments", o.Environments); err != nil {
			return nil, err
		}
		t.environments = append([]string(nil), o.Environments...)
	}

	if len(o.Criticality) > 0 {
		if err := checkUniqueValues("criticality", o.Criticality); err != nil {
			return nil, err
		}
		t.criticality = append([]string(nil), o.Criticality...)
	}

	return build(t, r.Settings()), nil
}

func checkUniqueKeys(table string, pairs []pair) error {
	seen := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p.key]; ok {
			return fmt.Errorf("%s: duplicate key %q", table, p.key)
		}
		seen[p.key] = struct{}{}
	}
	return nil
}

func checkUniqueValues(table string, values []string) error {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			return fmt.Errorf("%s: empty value", table)
		}
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s: duplicate value %q", table, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// LoadFile reads an override file (any format viper understands) on top of
// the built-in snapshot.
func LoadFile(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", path, err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Registry, error) {
	var o Overrides
	if err := v.Unmarshal(&o); err != nil {
		return nil, fmt.Errorf("failed to decode registry overrides: %w", err)
	}
	return Default().Override(o)
}

// Watch loads path into store and keeps swapping in a fresh snapshot every
// time the file changes. onReload, when set, sees every reload attempt; a
// failed reload leaves the previous snapshot in place.
func Watch(path string, store *Store, onReload func(*Registry, error)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read registry file %s: %w", path, err)
	}

	reg, err := fromViper(v)
	if err != nil {
		return err
	}
	if err := store.Replace(reg); err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		reg, err := fromViper(v)
		if err == nil {
			err = store.Replace(reg)
		}
		if onReload != nil {
			onReload(reg, err)
		}
	})
	v.WatchConfig()

	return nil
}
