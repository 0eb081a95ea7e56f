package store

import (
	"context"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `CREATE TABLE IF NOT EXISTS atoms (
	handle   BIGINT PRIMARY KEY,
	type     SMALLINT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	outgoing BIGINT[],
	tv       TEXT NOT NULL DEFAULT ''
)`

const upsertAtom = `INSERT INTO atoms (handle, type, name, outgoing, tv)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (handle) DO UPDATE
	SET type = EXCLUDED.type, name = EXCLUDED.name, outgoing = EXCLUDED.outgoing, tv = EXCLUDED.tv`

// SQLStorage keeps atoms in a single PostgreSQL table keyed by handle.
type SQLStorage struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// OpenSQL connects to url, checks the connection and creates the atoms
// table when missing.
func OpenSQL(ctx context.Context, url string, logger *zap.Logger) (*SQLStorage, error) {
	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to database")
	return NewSQLStorage(db, logger), nil
}

// EnsureSchema creates the atoms table when missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return errors.Wrap(err, "create atoms table")
}

func NewSQLStorage(db *pgxpool.Pool, logger *zap.Logger) *SQLStorage {
	return &SQLStorage{db: db, logger: logger}
}

// Load restores every stored atom into table. Nothing is added when any
// row conflicts with the table's current contents.
func (s *SQLStorage) Load(ctx context.Context, table *atomspace.Table) error {
	if s.db == nil {
		return ErrClosed
	}
	rows, err := s.db.Query(ctx, `SELECT handle, type, name, outgoing, tv FROM atoms ORDER BY handle`)
	if err != nil {
		return errors.Wrap(err, "query atoms")
	}
	defer rows.Close()

	var records []atomspace.Record
	for rows.Next() {
		var (
			handle   int64
			typ      int16
			name     string
			outgoing []int64
			tv       string
		)
		if err := rows.Scan(&handle, &typ, &name, &outgoing, &tv); err != nil {
			return errors.Wrap(err, "scan atom row")
		}
		records = append(records, recordFromRow(handle, typ, name, outgoing, tv))
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "read atom rows")
	}

	if err := table.Restore(records); err != nil {
		return err
	}
	s.logger.Info("atoms loaded from database", zap.Int("atoms", len(records)))
	return nil
}

// Store replaces the stored atoms with a snapshot of table inside one
// transaction. The transaction is rolled back if the table changes before
// commit.
func (s *SQLStorage) Store(ctx context.Context, table *atomspace.Table) error {
	if s.db == nil {
		return ErrClosed
	}
	version := table.Version()
	records := table.Snapshot()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin store transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM atoms WHERE NOT (handle = ANY($1))`, liveHandles(records)); err != nil {
		return errors.Wrap(err, "delete stale atoms")
	}

	results := tx.SendBatch(ctx, upsertBatch(records))
	for i := range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return errors.Wrapf(err, "upsert atom %d", records[i].Handle)
		}
	}
	if err := results.Close(); err != nil {
		return errors.Wrap(err, "close upsert batch")
	}

	if err := checkVersion(table, version); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit store transaction")
	}
	s.logger.Info("atoms stored to database", zap.Int("atoms", len(records)))
	return nil
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	return nil
}

func upsertBatch(records []atomspace.Record) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, r := range records {
		var outgoing []int64
		if len(r.Outgoing) > 0 {
			outgoing = make([]int64, len(r.Outgoing))
			for i, h := range r.Outgoing {
				outgoing[i] = int64(h)
			}
		}
		batch.Queue(upsertAtom, int64(r.Handle), int16(r.Type), r.Name, outgoing, r.TV)
	}
	return batch
}

func liveHandles(records []atomspace.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = int64(r.Handle)
	}
	return out
}

func recordFromRow(handle int64, typ int16, name string, outgoing []int64, tv string) atomspace.Record {
	r := atomspace.Record{
		Handle: atomspace.Handle(handle),
		Type:   atomspace.Type(typ),
		Name:   name,
		TV:     tv,
	}
	if len(outgoing) > 0 {
		r.Outgoing = make([]atomspace.Handle, len(outgoing))
		for i, h := range outgoing {
			r.Outgoing[i] = atomspace.Handle(h)
		}
	}
	return r
}
