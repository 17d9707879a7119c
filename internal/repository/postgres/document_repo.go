package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/model"
)

// DocumentRepo implements DocumentRepository using PostgreSQL.
type DocumentRepo struct{ db *DB }

// NewDocumentRepo constructs a document repository.
func NewDocumentRepo(db *DB) *DocumentRepo { return &DocumentRepo{db: db} }

// Insert stores a new document row.
func (r *DocumentRepo) Insert(ctx context.Context, d *model.StoredDocument) error {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return errs.ErrValidation
	}
	const q = `
INSERT INTO documents (id, owner_id, collection, body, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.db.Pool.Exec(ctx, q, id, d.OwnerID, d.Collection, []byte(d.Body), d.Created, d.Updated)
	switch {
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	}
	return err
}

// Update replaces the body inside a transaction so created_at is preserved
// and the returned row is exactly what was stored.
func (r *DocumentRepo) Update(
	ctx context.Context, owner uuid.UUID, collection string, id uuid.UUID, body json.RawMessage, at time.Time,
) (doc model.Document, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Document{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT created_at FROM documents WHERE id=$1 AND owner_id=$2 AND collection=$3 FOR UPDATE`
	const upd = `UPDATE documents SET body=$4, updated_at=$5 WHERE id=$1 AND owner_id=$2 AND collection=$3`

	var created time.Time
	if err = tx.QueryRow(ctx, sel, id, owner, collection).Scan(&created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, errs.ErrNotFound
		}
		return model.Document{}, err
	}
	if _, err = tx.Exec(ctx, upd, id, owner, collection, []byte(body), at); err != nil {
		return model.Document{}, err
	}
	return model.Document{ID: id.String(), Created: created, Updated: at, Body: body}, nil
}

// Delete removes a document and returns the deleted row.
func (r *DocumentRepo) Delete(ctx context.Context, owner uuid.UUID, collection string, id uuid.UUID) (model.Document, error) {
	const q = `
DELETE FROM documents WHERE id=$1 AND owner_id=$2 AND collection=$3
RETURNING id, created_at, updated_at, body`
	var (
		did  uuid.UUID
		d    model.Document
		body []byte
	)
	if err := r.db.Pool.QueryRow(ctx, q, id, owner, collection).Scan(&did, &d.Created, &d.Updated, &body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, errs.ErrNotFound
		}
		return model.Document{}, err
	}
	d.ID = did.String()
	d.Body = body
	return d, nil
}

// List returns a collection ordered by insertion.
func (r *DocumentRepo) List(ctx context.Context, owner uuid.UUID, collection string) ([]model.Document, error) {
	const q = `
SELECT id, created_at, updated_at, body
FROM documents
WHERE owner_id=$1 AND collection=$2
ORDER BY seq ASC`
	rows, err := r.db.Pool.Query(ctx, q, owner, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Document{}
	for rows.Next() {
		var (
			id   uuid.UUID
			d    model.Document
			body []byte
		)
		if err = rows.Scan(&id, &d.Created, &d.Updated, &body); err != nil {
			return nil, err
		}
		d.ID = id.String()
		d.Body = body
		out = append(out, d)
	}
	return out, rows.Err()
}
