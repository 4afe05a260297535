package boltdb

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	dp "github.com/forscht/filedeck/internal/dataprovider"
	"github.com/forscht/filedeck/pkg/ns"
	"github.com/forscht/filedeck/pkg/safename"
)

var (
	fsBucket   = []byte("fs")
	treeBucket = []byte("tree")
)

type Provider struct {
	db *bbolt.DB
	sg *snowflake.Node
}

type Config struct {
	DbPath string `mapstructure:"db_path"`
}

func New(cfg *Config) (dp.DataProvider, error) {
	db, err := bbolt.Open(cfg.DbPath, 0666, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open boltdb %s: %w", cfg.DbPath, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(fsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(treeBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init boltdb: %w", err)
	}
	sg, err := snowflake.NewNode(int64(rand.Intn(1023)))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}
	log.Info().Str("c", "boltdb").Str("path", cfg.DbPath).Msg("initialized boltdb as dataprovider")

	return &Provider{db, sg}, nil
}

func (bfp *Provider) Name() string {
	return "boltdb"
}

func (bfp *Provider) Get(id int64) (*dp.File, error) {
	var file *dp.File
	err := bfp.db.View(func(tx *bbolt.Tx) error {
		var err error
		file, err = getFile(tx, id)
		return err
	})
	return file, err
}

func (bfp *Provider) Children(parent ns.NullID) ([]*dp.File, error) {
	files := make([]*dp.File, 0)
	err := bfp.db.View(func(tx *bbolt.Tx) error {
		if parent.Valid() {
			dir, err := getFile(tx, int64(parent))
			if err != nil {
				return err
			}
			if !dir.Dir {
				return dp.ErrInvalidParent
			}
		}
		var err error
		files, err = children(tx, parent)
		return err
	})
	if err != nil {
		return nil, err
	}
	dp.SortFiles(files)
	return files, nil
}

func (bfp *Provider) Create(file *dp.File) (*dp.File, error) {
	created := *file
	err := bfp.db.Update(func(tx *bbolt.Tx) error {
		if created.Parent.Valid() {
			dir, err := getFile(tx, int64(created.Parent))
			if err != nil || !dir.Dir {
				return dp.ErrInvalidParent
			}
		}
		siblings, err := children(tx, created.Parent)
		if err != nil {
			return err
		}
		names := make(map[string]bool, len(siblings))
		for _, s := range siblings {
			names[s.Name] = true
		}
		created.Name = safename.Resolve(created.Name, func(n string) bool { return names[n] })
		created.Id = bfp.sg.Generate().Int64()
		created.CTime = time.Now().UTC()

		data, err := serializeFile(&created)
		if err != nil {
			return err
		}
		if err = tx.Bucket(fsBucket).Put(itob(created.Id), data); err != nil {
			return err
		}
		return tx.Bucket(treeBucket).Put(treeKey(created.Parent, created.Id), []byte{})
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (bfp *Provider) Delete(id int64) ([]*dp.File, error) {
	var removed []*dp.File
	err := bfp.db.Update(func(tx *bbolt.Tx) error {
		root, err := getFile(tx, id)
		if err != nil {
			return err
		}
		fs := tx.Bucket(fsBucket)
		tree := tx.Bucket(treeBucket)

		queue := []*dp.File{root}
		for len(queue) > 0 {
			file := queue[0]
			queue = queue[1:]
			if file.Dir {
				kids, err := children(tx, ns.NullID(file.Id))
				if err != nil {
					return err
				}
				queue = append(queue, kids...)
			}
			removed = append(removed, file)
		}

		for _, file := range removed {
			if err := fs.Delete(itob(file.Id)); err != nil {
				return err
			}
			if err := tree.Delete(treeKey(file.Parent, file.Id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (bfp *Provider) Close() error {
	return bfp.db.Close()
}

func getFile(tx *bbolt.Tx, id int64) (*dp.File, error) {
	data := tx.Bucket(fsBucket).Get(itob(id))
	if data == nil {
		return nil, dp.ErrNotExist
	}
	return deserializeFile(data)
}

func children(tx *bbolt.Tx, parent ns.NullID) ([]*dp.File, error) {
	files := make([]*dp.File, 0)
	prefix := itob(int64(parent))
	c := tx.Bucket(treeBucket).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		file, err := getFile(tx, btoi(k[8:]))
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}
