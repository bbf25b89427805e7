package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/contatus/contatus/internal/model"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
)

var organizationColumns = []string{"id", "name", "current_contacts", "max_contacts", "ctime", "mtime"}

type OrganizationRepo struct {
	db *sqlx.DB
}

func NewOrganizationRepo(db *sql.DB) *OrganizationRepo {
	return &OrganizationRepo{db: sqlx.NewDb(db, "sqlite")}
}

func (r *OrganizationRepo) Get(ctx context.Context, orgID string) (*model.Organization, error) {
	where := map[string]interface{}{"id": orgID}
	sqlStr, args, err := builder.BuildSelect("organizations", where, organizationColumns)
	if err != nil {
		return nil, err
	}
	var org model.Organization
	if err := r.db.GetContext(ctx, &org, sqlStr, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrOrgNotFound
		}
		return nil, err
	}
	return &org, nil
}

// IncrementContactCount applies one atomic delta to the denormalized
// contact counter. Negative deltas decrement but never drop below zero.
func (r *OrganizationRepo) IncrementContactCount(ctx context.Context, orgID string, delta int, mtime int64) error {
	const query = `
		UPDATE organizations
		SET current_contacts = MAX(current_contacts + ?, 0), mtime = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, delta, mtime, orgID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrOrgNotFound
	}
	return nil
}
