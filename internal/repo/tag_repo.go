package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/contatus/contatus/internal/model"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
)

var tagColumns = []string{"id", "organization_id", "name", "color", "ctime", "mtime"}

type TagRepo struct {
	db *sqlx.DB
}

func NewTagRepo(db *sql.DB) *TagRepo {
	return &TagRepo{db: sqlx.NewDb(db, "sqlite")}
}

func (r *TagRepo) Create(ctx context.Context, tag *model.Tag) error {
	data := map[string]interface{}{
		"id":              tag.ID,
		"organization_id": tag.OrganizationID,
		"name":            tag.Name,
		"color":           tag.Color,
		"ctime":           tag.Ctime,
		"mtime":           tag.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("tags", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// Upsert creates the tag scoped to (organization_id, name) if it does not
// exist yet. Existing tags keep their color; the operation is idempotent and
// safe under concurrent import runs for the same org.
func (r *TagRepo) Upsert(ctx context.Context, tag *model.Tag) error {
	const upsert = `
		INSERT INTO tags (id, organization_id, name, color, ctime, mtime)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (organization_id, name) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, upsert,
		tag.ID,
		tag.OrganizationID,
		tag.Name,
		tag.Color,
		tag.Ctime,
		tag.Mtime,
	)
	return err
}

func (r *TagRepo) List(ctx context.Context, orgID string) ([]model.Tag, error) {
	where := map[string]interface{}{
		"organization_id": orgID,
		"_orderby":        "name asc",
	}
	sqlStr, args, err := builder.BuildSelect("tags", where, tagColumns)
	if err != nil {
		return nil, err
	}
	tags := make([]model.Tag, 0)
	if err := r.db.SelectContext(ctx, &tags, sqlStr, args...); err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *TagRepo) GetByName(ctx context.Context, orgID, name string) (*model.Tag, error) {
	where := map[string]interface{}{
		"organization_id": orgID,
		"name":            name,
	}
	sqlStr, args, err := builder.BuildSelect("tags", where, tagColumns)
	if err != nil {
		return nil, err
	}
	var tag model.Tag
	if err := r.db.GetContext(ctx, &tag, sqlStr, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &tag, nil
}

func (r *TagRepo) Delete(ctx context.Context, orgID, tagID string) error {
	where := map[string]interface{}{
		"id":              tagID,
		"organization_id": orgID,
	}
	sqlStr, args, err := builder.BuildDelete("tags", where)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
