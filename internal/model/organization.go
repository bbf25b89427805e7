package model

// Organization is the tenant boundary. CurrentContacts is a denormalized
// counter kept by atomic increments, not recomputed per read; it may lag
// briefly under concurrent imports into the same org.
type Organization struct {
	ID              string `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	CurrentContacts int    `json:"current_contacts" db:"current_contacts"`
	MaxContacts     int    `json:"max_contacts" db:"max_contacts"`
	Ctime           int64  `json:"ctime" db:"ctime"`
	Mtime           int64  `json:"mtime" db:"mtime"`
}
