package postgres

// Migration is one schema step. Steps are applied in ID order and recorded in
// schema_migrations so each runs once.
type Migration struct {
	ID int
	Up []string
}

var migrations = []Migration{
	{
		ID: 1,
		Up: []string{
			`CREATE TABLE IF NOT EXISTS files
			(
			    id           BIGINT PRIMARY KEY,
			    name         VARCHAR(255) NOT NULL,
			    content_type VARCHAR(128),
			    size         BIGINT,
			    dir          BOOLEAN      NOT NULL DEFAULT FALSE,
			    parent       BIGINT REFERENCES files (id) ON DELETE CASCADE,
			    blob_key     VARCHAR(64),
			    ctime        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);`,
			`CREATE INDEX IF NOT EXISTS idx_files_parent ON files (parent);`,
		},
	},
	{
		ID: 2,
		Up: []string{
			`ALTER TABLE files ADD CONSTRAINT files_name_not_blank CHECK (btrim(name) <> '');`,
		},
	},
}
