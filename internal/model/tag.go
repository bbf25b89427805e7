package model

// Tag is unique per (organization_id, name). Color is assigned from a fixed
// palette when the tag is first materialized during an import.
type Tag struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	Name           string `json:"name" db:"name"`
	Color          string `json:"color" db:"color"`
	Ctime          int64  `json:"ctime" db:"ctime"`
	Mtime          int64  `json:"mtime" db:"mtime"`
}
