package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/eligibility-report-api/pkg/storage"
)

const blobSchema = `CREATE TABLE IF NOT EXISTS report_blobs (
	id UUID PRIMARY KEY,
	container TEXT NOT NULL,
	name TEXT NOT NULL,
	content BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT report_blobs_container_name_key UNIQUE (container, name)
)`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type blobRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	UpdatedAt time.Time `db:"updated_at"`
}

// BlobRepository is a storage.Backend persisting report documents in PostgreSQL. The unique
// (container, name) constraint gives Create its create-if-absent semantics.
type BlobRepository struct {
	db *sqlx.DB
}

// NewBlobRepository constructs the repository.
func NewBlobRepository(db *sqlx.DB) *BlobRepository {
	return &BlobRepository{db: db}
}

// EnsureSchema creates the blob table when missing.
func (r *BlobRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, blobSchema); err != nil {
		return fmt.Errorf("ensure report_blobs schema: %w", err)
	}
	return nil
}

// List returns blobs in a container, most recently updated first.
func (r *BlobRepository) List(ctx context.Context, query storage.BlobQuery) ([]storage.BlobRef, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, name, updated_at FROM report_blobs WHERE container = $1`)
	args := []interface{}{query.Container}

	if query.Name != "" {
		args = append(args, query.Name)
		builder.WriteString(fmt.Sprintf(" AND name = $%d", len(args)))
	}
	if query.Suffix != "" {
		args = append(args, "%"+likeEscaper.Replace(query.Suffix))
		builder.WriteString(fmt.Sprintf(` AND name LIKE $%d ESCAPE '\'`, len(args)))
	}
	builder.WriteString(" ORDER BY updated_at DESC, name ASC")

	var rows []blobRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, classifyPG("list report blobs", err)
	}

	refs := make([]storage.BlobRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, storage.BlobRef{ID: row.ID, Name: row.Name, UpdatedAt: row.UpdatedAt.UTC()})
	}
	return refs, nil
}

// Create inserts a blob unless (container, name) is already taken.
func (r *BlobRepository) Create(ctx context.Context, name, container string, content []byte) (string, error) {
	const query = `INSERT INTO report_blobs (id, container, name, content)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (container, name) DO NOTHING
	RETURNING id`

	var id string
	err := r.db.QueryRowxContext(ctx, query, uuid.NewString(), container, name, content).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrBlobExists
	}
	if err != nil {
		return "", classifyPG("create report blob", err)
	}
	return id, nil
}

// Update replaces the content of an existing blob.
func (r *BlobRepository) Update(ctx context.Context, id string, content []byte) error {
	const query = `UPDATE report_blobs SET content = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, content, id)
	if err != nil {
		return classifyPG("update report blob", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return classifyPG("update report blob", err)
	}
	if affected == 0 {
		return storage.ErrBlobNotFound
	}
	return nil
}

// GetContent loads a blob's content.
func (r *BlobRepository) GetContent(ctx context.Context, id string) ([]byte, error) {
	const query = `SELECT content FROM report_blobs WHERE id = $1`
	var content []byte
	if err := r.db.GetContext(ctx, &content, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, classifyPG("get report blob", err)
	}
	return content, nil
}

// classifyPG treats connection, resource and serialization failures as transient.
func classifyPG(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, sql.ErrConnDone) {
		return storage.Transient(op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return storage.Transient(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return storage.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
