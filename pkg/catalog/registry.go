// Package catalog loads the standard-entity registry the matcher classifies
// diagram entities against. The registry is an external data source: it is
// read once at startup, either from the embedded CDM snapshot or from a YAML
// file supplied via configuration, and is immutable afterwards.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/erdflow/erdflow-engine/pkg/models"
)

//go:embed cdm.yaml
var embeddedCDM []byte

// registryFile is the YAML shape of a registry snapshot.
type registryFile struct {
	Entities []models.RegistryEntity `yaml:"entities"`
}

// Registry is an immutable snapshot of the standard-entity catalog. Entities
// returns records in a stable order so matching is deterministic.
type Registry struct {
	entities []models.RegistryEntity
}

// New builds a registry from the given records. Records are copied and sorted
// by logical name; matching iterates them in that order.
func New(entities []models.RegistryEntity) *Registry {
	sorted := make([]models.RegistryEntity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LogicalName < sorted[j].LogicalName
	})
	return &Registry{entities: sorted}
}

// Default returns the registry built from the embedded CDM snapshot.
func Default() (*Registry, error) {
	return parse(embeddedCDM)
}

// LoadFile reads a registry snapshot from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry yaml: %w", err)
	}
	if len(file.Entities) == 0 {
		return nil, fmt.Errorf("registry contains no entities")
	}
	for i, e := range file.Entities {
		if e.LogicalName == "" {
			return nil, fmt.Errorf("registry entity %d has no logical name", i)
		}
	}
	return New(file.Entities), nil
}

// Entities returns all registry records in stable (logical name) order.
// Callers must not mutate the returned slice.
func (r *Registry) Entities() []models.RegistryEntity {
	return r.entities
}

// Len returns the number of registry records.
func (r *Registry) Len() int {
	return len(r.entities)
}

// Lookup returns the record with the given logical name.
func (r *Registry) Lookup(logicalName string) (models.RegistryEntity, bool) {
	i := sort.Search(len(r.entities), func(i int) bool {
		return r.entities[i].LogicalName >= logicalName
	})
	if i < len(r.entities) && r.entities[i].LogicalName == logicalName {
		return r.entities[i], true
	}
	return models.RegistryEntity{}, false
}
