package model

const (
	ContactStatusActive   = "ACTIVE"
	ContactStatusInactive = "INACTIVE"
)

// Contact belongs to exactly one organization. Email uniqueness is enforced
// per organization, not globally; contacts without an email carry a NULL so
// the unique index never collides on them.
type Contact struct {
	ID             string            `json:"id" db:"id"`
	OrganizationID string            `json:"organization_id" db:"organization_id"`
	Name           string            `json:"name" db:"name"`
	Email          *string           `json:"email" db:"email"`
	Phone          string            `json:"phone" db:"phone"`
	Company        string            `json:"company" db:"company"`
	Position       string            `json:"position" db:"position"`
	City           string            `json:"city" db:"city"`
	State          string            `json:"state" db:"state"`
	Notes          string            `json:"notes" db:"notes"`
	Status         string            `json:"status" db:"status"`
	CustomFields   map[string]string `json:"custom_fields,omitempty" db:"-"`
	Ctime          int64             `json:"ctime" db:"ctime"`
	Mtime          int64             `json:"mtime" db:"mtime"`
}

func (c *Contact) EmailValue() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}
