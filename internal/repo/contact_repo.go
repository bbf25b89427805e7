package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/contatus/contatus/internal/model"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
)

var contactColumns = []string{
	"id", "organization_id", "name", "email", "phone", "company",
	"position", "city", "state", "notes", "status", "custom_fields_json",
	"ctime", "mtime",
}

type ContactRepo struct {
	db *sqlx.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: sqlx.NewDb(db, "sqlite")}
}

type contactRow struct {
	model.Contact
	CustomFieldsJSON string `db:"custom_fields_json"`
}

func (r contactRow) toModel() model.Contact {
	contact := r.Contact
	if r.CustomFieldsJSON != "" && r.CustomFieldsJSON != "{}" {
		fields := map[string]string{}
		if err := json.Unmarshal([]byte(r.CustomFieldsJSON), &fields); err == nil {
			contact.CustomFields = fields
		}
	}
	return contact
}

func contactValues(contact *model.Contact) map[string]interface{} {
	fieldsJSON := "{}"
	if len(contact.CustomFields) > 0 {
		if data, err := json.Marshal(contact.CustomFields); err == nil {
			fieldsJSON = string(data)
		}
	}
	var email interface{}
	if contact.Email != nil && *contact.Email != "" {
		email = *contact.Email
	}
	return map[string]interface{}{
		"id":               contact.ID,
		"organization_id":  contact.OrganizationID,
		"name":             contact.Name,
		"email":            email,
		"phone":            contact.Phone,
		"company":          contact.Company,
		"position":         contact.Position,
		"city":             contact.City,
		"state":            contact.State,
		"notes":            contact.Notes,
		"status":           contact.Status,
		"custom_fields_json": fieldsJSON,
		"ctime":            contact.Ctime,
		"mtime":            contact.Mtime,
	}
}

func (r *ContactRepo) Create(ctx context.Context, contact *model.Contact) error {
	sqlStr, args, err := builder.BuildInsert("contacts", []map[string]interface{}{contactValues(contact)})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// BulkInsertIgnoreConflicts inserts a batch in one statement; rows violating
// the (organization_id, email) unique index are silently skipped at the
// storage layer.
func (r *ContactRepo) BulkInsertIgnoreConflicts(ctx context.Context, contacts []model.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(contacts))
	for i := range contacts {
		rows = append(rows, contactValues(&contacts[i]))
	}
	sqlStr, args, err := builder.BuildInsert("contacts", rows)
	if err != nil {
		return err
	}
	sqlStr = strings.Replace(sqlStr, "insert into", "insert or ignore into", 1)
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR IGNORE INTO", 1)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ContactRepo) FindByOrgAndEmail(ctx context.Context, orgID, email string) (*model.Contact, error) {
	where := map[string]interface{}{
		"organization_id": orgID,
		"email":           email,
		"_limit":          []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect("contacts", where, contactColumns)
	if err != nil {
		return nil, err
	}
	var row contactRow
	if err := r.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	contact := row.toModel()
	return &contact, nil
}

func (r *ContactRepo) Get(ctx context.Context, orgID, contactID string) (*model.Contact, error) {
	where := map[string]interface{}{
		"id":              contactID,
		"organization_id": orgID,
	}
	sqlStr, args, err := builder.BuildSelect("contacts", where, contactColumns)
	if err != nil {
		return nil, err
	}
	var row contactRow
	if err := r.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	contact := row.toModel()
	return &contact, nil
}

func (r *ContactRepo) Update(ctx context.Context, contact *model.Contact) error {
	values := contactValues(contact)
	delete(values, "id")
	delete(values, "organization_id")
	delete(values, "ctime")
	where := map[string]interface{}{
		"id":              contact.ID,
		"organization_id": contact.OrganizationID,
	}
	sqlStr, args, err := builder.BuildUpdate("contacts", where, values)
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

func (r *ContactRepo) List(ctx context.Context, orgID, search, status string, limit, offset int) ([]model.Contact, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	sqlStr := "SELECT " + strings.Join(contactColumns, ", ") + " FROM contacts WHERE organization_id = ?"
	args := []interface{}{orgID}
	if search != "" {
		sqlStr += " AND (name LIKE ? OR email LIKE ? OR phone LIKE ?)"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if status != "" && status != "ALL" {
		sqlStr += " AND status = ?"
		args = append(args, status)
	}
	sqlStr += " ORDER BY ctime DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows := make([]contactRow, 0)
	if err := r.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, err
	}
	contacts := make([]model.Contact, 0, len(rows))
	for _, row := range rows {
		contacts = append(contacts, row.toModel())
	}
	return contacts, nil
}

func (r *ContactRepo) Count(ctx context.Context, orgID, search, status string) (int, error) {
	sqlStr := "SELECT COUNT(*) FROM contacts WHERE organization_id = ?"
	args := []interface{}{orgID}
	if search != "" {
		sqlStr += " AND (name LIKE ? OR email LIKE ? OR phone LIKE ?)"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if status != "" && status != "ALL" {
		sqlStr += " AND status = ?"
		args = append(args, status)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, sqlStr, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ContactRepo) Delete(ctx context.Context, orgID, contactID string) error {
	where := map[string]interface{}{
		"id":              contactID,
		"organization_id": orgID,
	}
	sqlStr, args, err := builder.BuildDelete("contacts", where)
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
