package catalog

import (
	"fmt"

	"heatloss-engine/internal/models"
)

// Registry maps each question kind to its catalog. It is filled once at
// startup and only read afterwards.
type Registry struct {
	catalogs map[models.QuestionKind]*Catalog
}

// NewRegistry indexes catalogs by kind. Two catalogs for one kind is a configuration error.
func NewRegistry(catalogs ...*Catalog) (*Registry, error) {
	r := &Registry{catalogs: make(map[models.QuestionKind]*Catalog, len(catalogs))}
	for _, c := range catalogs {
		if _, dup := r.catalogs[c.Kind()]; dup {
			return nil, &models.ConfigurationError{
				Source:  string(c.Kind()),
				Message: "catalog registered twice",
			}
		}
		r.catalogs[c.Kind()] = c
	}
	return r, nil
}

// Get returns the catalog for kind
func (r *Registry) Get(kind models.QuestionKind) (*Catalog, error) {
	c, ok := r.catalogs[kind]
	if !ok {
		return nil, &models.UnknownKindError{Requested: string(kind)}
	}
	return c, nil
}

// Kinds returns the registered kinds in display order
func (r *Registry) Kinds() []models.QuestionKind {
	kinds := make([]models.QuestionKind, 0, len(r.catalogs))
	for _, k := range models.AllKinds() {
		if _, ok := r.catalogs[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Loader builds the catalog for one kind from some source
type Loader func(kind models.QuestionKind) (*Catalog, error)

// LoadRegistry runs load for every known question kind
func LoadRegistry(load Loader) (*Registry, error) {
	catalogs := make([]*Catalog, 0, len(models.AllKinds()))
	for _, kind := range models.AllKinds() {
		c, err := load(kind)
		if err != nil {
			return nil, fmt.Errorf("loading %s catalog: %w", kind, err)
		}
		catalogs = append(catalogs, c)
	}
	return NewRegistry(catalogs...)
}

// EmbeddedRegistry loads the default catalogs compiled into the binary
func EmbeddedRegistry() (*Registry, error) {
	return LoadRegistry(LoadEmbedded)
}

// DirRegistry loads every catalog from subdirectories of dir
func DirRegistry(dir string) (*Registry, error) {
	return LoadRegistry(func(kind models.QuestionKind) (*Catalog, error) {
		return LoadDir(dir, kind)
	})
}
