package dataprovider

import (
	"github.com/rs/zerolog/log"

	"github.com/forscht/filedeck/pkg/ns"
	"github.com/forscht/filedeck/pkg/validator"
)

var (
	provider DataProvider
	validate = validator.New()
)

// DataProvider stores the metadata of the tree. Blob content lives in storage.
type DataProvider interface {
	Name() string
	// Get returns the record with the given id.
	Get(id int64) (*File, error)
	// Children lists the direct children of parent, the root when parent is null.
	Children(parent ns.NullID) ([]*File, error)
	// Create inserts file under file.Parent. The name is made unique among its
	// siblings and the id and creation time are assigned by the provider.
	Create(file *File) (*File, error)
	// Delete removes id and, for directories, its whole subtree. The removed
	// records are returned so the caller can release their blobs.
	Delete(id int64) ([]*File, error)
	Close() error
}

func Load(dp DataProvider) {
	provider = dp
}

func Name() string {
	return provider.Name()
}

func Get(id int64) (*File, error) {
	log.Debug().Str("c", "dataprovider").Int64("id", id).Msg("GET")
	return provider.Get(id)
}

func Children(parent ns.NullID) ([]*File, error) {
	log.Debug().Str("c", "dataprovider").Str("parent", parent.String()).Msg("CHILDREN")
	return provider.Children(parent)
}

func Create(file *File) (*File, error) {
	log.Debug().Str("c", "dataprovider").Str("name", file.Name).Str("parent", file.Parent.String()).Bool("dir", file.Dir).Msg("CREATE")
	if err := validate.Struct(file); err != nil {
		return nil, ErrInvalidName
	}
	return provider.Create(file)
}

func Delete(id int64) ([]*File, error) {
	log.Debug().Str("c", "dataprovider").Int64("id", id).Msg("DELETE")
	return provider.Delete(id)
}

func Close() error {
	if provider == nil {
		return nil
	}
	return provider.Close()
}
