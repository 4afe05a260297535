package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	dp "github.com/forscht/filedeck/internal/dataprovider"
	"github.com/forscht/filedeck/pkg/locker"
	"github.com/forscht/filedeck/pkg/ns"
	"github.com/forscht/filedeck/pkg/safename"
)

const columns = `id, name, content_type, size, dir, parent, blob_key, ctime`

type PGProvider struct {
	db     *sql.DB
	sg     *snowflake.Node
	locker *locker.Locker
}

type Config struct {
	DbURL string `mapstructure:"db_url"`
	// SkipMigration leaves the schema to cmd/migrate.
	SkipMigration bool `mapstructure:"skip_migration"`
}

func New(cfg *Config) (dp.DataProvider, error) {
	dbConn, err := NewDb(cfg.DbURL, cfg.SkipMigration)
	if err != nil {
		return nil, err
	}
	sg, err := snowflake.NewNode(int64(rand.Intn(1023)))
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}
	log.Info().Str("c", "postgres").Msg("initialized postgres as dataprovider")

	return &PGProvider{dbConn, sg, locker.New()}, nil
}

func (pgp *PGProvider) Name() string {
	return "postgres"
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row scanner) (*dp.File, error) {
	file := new(dp.File)
	var contentType, blobKey sql.NullString
	var size sql.NullInt64
	if err := row.Scan(&file.Id, &file.Name, &contentType, &size, &file.Dir, &file.Parent, &blobKey, &file.CTime); err != nil {
		return nil, err
	}
	file.ContentType = contentType.String
	file.BlobKey = blobKey.String
	if size.Valid {
		file.Size = &size.Int64
	}
	file.CTime = file.CTime.UTC()
	return file, nil
}

func (pgp *PGProvider) Get(id int64) (*dp.File, error) {
	file, err := scanFile(pgp.db.QueryRow(`SELECT `+columns+` FROM files WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dp.ErrNotExist
		}
		return nil, err
	}
	return file, nil
}

func (pgp *PGProvider) Children(parent ns.NullID) ([]*dp.File, error) {
	if parent.Valid() {
		dir, err := pgp.Get(int64(parent))
		if err != nil {
			return nil, err
		}
		if !dir.Dir {
			return nil, dp.ErrInvalidParent
		}
	}
	return pgp.children(parent)
}

func (pgp *PGProvider) children(parent ns.NullID) ([]*dp.File, error) {
	var rows *sql.Rows
	var err error
	if parent.Valid() {
		rows, err = pgp.db.Query(`SELECT `+columns+` FROM files WHERE parent=$1 ORDER BY dir DESC, lower(name)`, int64(parent))
	} else {
		rows, err = pgp.db.Query(`SELECT ` + columns + ` FROM files WHERE parent IS NULL ORDER BY dir DESC, lower(name)`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]*dp.File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (pgp *PGProvider) Create(file *dp.File) (*dp.File, error) {
	// Name resolution reads the siblings and then inserts, so creations in the
	// same folder must not interleave.
	key := file.Parent.String()
	pgp.locker.Acquire(key)
	defer pgp.locker.Release(key)

	if file.Parent.Valid() {
		dir, err := pgp.Get(int64(file.Parent))
		if err != nil || !dir.Dir {
			return nil, dp.ErrInvalidParent
		}
	}
	siblings, err := pgp.children(file.Parent)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(siblings))
	for _, s := range siblings {
		names[s.Name] = true
	}

	created := *file
	created.Name = safename.Resolve(file.Name, func(n string) bool { return names[n] })
	created.Id = pgp.sg.Generate().Int64()

	var size sql.NullInt64
	if created.Size != nil {
		size = sql.NullInt64{Int64: *created.Size, Valid: true}
	}
	err = pgp.db.QueryRow(
		`INSERT INTO files (id, name, content_type, size, dir, parent, blob_key) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, '')) RETURNING ctime`,
		created.Id, created.Name, created.ContentType, size, created.Dir, created.Parent, created.BlobKey,
	).Scan(&created.CTime)
	if err != nil {
		return nil, pqErrToOs(err)
	}
	created.CTime = created.CTime.UTC()
	return &created, nil
}

func (pgp *PGProvider) Delete(id int64) ([]*dp.File, error) {
	tx, err := pgp.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`
		WITH RECURSIVE subtree AS (
		    SELECT `+columns+` FROM files WHERE id = $1
		    UNION ALL
		    SELECT f.id, f.name, f.content_type, f.size, f.dir, f.parent, f.blob_key, f.ctime
		    FROM files f JOIN subtree s ON f.parent = s.id
		)
		SELECT `+columns+` FROM subtree`, id)
	if err != nil {
		return nil, err
	}
	removed := make([]*dp.File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		removed = append(removed, file)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, dp.ErrNotExist
	}

	// children go with ON DELETE CASCADE
	if _, err = tx.Exec(`DELETE FROM files WHERE id=$1`, id); err != nil {
		return nil, pqErrToOs(err)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

func pqErrToOs(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique violation
			return dp.ErrExist
		case "23503": // foreign key violation, parent vanished
			return dp.ErrInvalidParent
		case "23514": // check violation
			return dp.ErrPermission
		}
	}
	return err
}

func (pgp *PGProvider) Close() error {
	return pgp.db.Close()
}
