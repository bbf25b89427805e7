package service

import (
	"bytes"
	"context"
	"math"

	"github.com/yuin/goldmark"

	"github.com/contatus/contatus/internal/importer"
	"github.com/contatus/contatus/internal/model"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
	"github.com/contatus/contatus/internal/pkg/timeutil"
	"github.com/contatus/contatus/internal/repo"
)

type ContactInput struct {
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	Company      string            `json:"company"`
	Position     string            `json:"position"`
	City         string            `json:"city"`
	State        string            `json:"state"`
	Notes        string            `json:"notes"`
	CustomFields map[string]string `json:"custom_fields"`
}

type ContactPage struct {
	Contacts   []model.Contact `json:"contacts"`
	Pagination Pagination      `json:"pagination"`
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// ContactDetail is a single contact plus its notes rendered from markdown,
// ready for the detail view.
type ContactDetail struct {
	model.Contact
	NotesHTML string `json:"notes_html,omitempty"`
}

type ContactService struct {
	contacts *repo.ContactRepo
	orgs     *repo.OrganizationRepo
	markdown goldmark.Markdown
}

func NewContactService(contacts *repo.ContactRepo, orgs *repo.OrganizationRepo) *ContactService {
	return &ContactService{
		contacts: contacts,
		orgs:     orgs,
		markdown: goldmark.New(),
	}
}

func (s *ContactService) List(ctx context.Context, orgID, search, status string, page, limit int) (*ContactPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	offset := (page - 1) * limit
	contacts, err := s.contacts.List(ctx, orgID, search, status, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.contacts.Count(ctx, orgID, search, status)
	if err != nil {
		return nil, err
	}
	return &ContactPage{
		Contacts: contacts,
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

func (s *ContactService) Get(ctx context.Context, orgID, contactID string) (*ContactDetail, error) {
	contact, err := s.contacts.Get(ctx, orgID, contactID)
	if err != nil {
		return nil, err
	}
	detail := &ContactDetail{Contact: *contact}
	if contact.Notes != "" {
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(contact.Notes), &buf); err == nil {
			detail.NotesHTML = buf.String()
		}
	}
	return detail, nil
}

func (s *ContactService) Create(ctx context.Context, orgID string, input ContactInput) (*model.Contact, error) {
	if input.Name == "" && input.Email == "" {
		return nil, appErr.ErrInvalid
	}
	if input.Email != "" {
		if !importer.IsValidEmail(input.Email) {
			return nil, appErr.ErrInvalid
		}
		if _, err := s.contacts.FindByOrgAndEmail(ctx, orgID, input.Email); err == nil {
			return nil, appErr.ErrConflict
		} else if !appErr.IsNotFound(err) {
			return nil, err
		}
	}

	now := timeutil.NowUnix()
	contact := &model.Contact{
		ID:             newID(),
		OrganizationID: orgID,
		Name:           input.Name,
		Phone:          importer.NormalizePhone(input.Phone),
		Company:        input.Company,
		Position:       input.Position,
		City:           input.City,
		State:          input.State,
		Notes:          input.Notes,
		Status:         model.ContactStatusActive,
		CustomFields:   input.CustomFields,
		Ctime:          now,
		Mtime:          now,
	}
	if input.Email != "" {
		email := input.Email
		contact.Email = &email
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}
	if err := s.orgs.IncrementContactCount(ctx, orgID, 1, now); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *ContactService) Update(ctx context.Context, orgID, contactID string, input ContactInput) (*model.Contact, error) {
	existing, err := s.contacts.Get(ctx, orgID, contactID)
	if err != nil {
		return nil, err
	}
	if input.Email != "" && !importer.IsValidEmail(input.Email) {
		return nil, appErr.ErrInvalid
	}

	if input.Name != "" {
		existing.Name = input.Name
	}
	if input.Email != "" {
		email := input.Email
		existing.Email = &email
	}
	if input.Phone != "" {
		existing.Phone = importer.NormalizePhone(input.Phone)
	}
	existing.Company = input.Company
	existing.Position = input.Position
	existing.City = input.City
	existing.State = input.State
	existing.Notes = input.Notes
	if len(input.CustomFields) > 0 {
		if existing.CustomFields == nil {
			existing.CustomFields = map[string]string{}
		}
		for key, value := range input.CustomFields {
			existing.CustomFields[key] = value
		}
	}
	existing.Mtime = timeutil.NowUnix()

	if err := s.contacts.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *ContactService) Delete(ctx context.Context, orgID, contactID string) error {
	if err := s.contacts.Delete(ctx, orgID, contactID); err != nil {
		return err
	}
	return s.orgs.IncrementContactCount(ctx, orgID, -1, timeutil.NowUnix())
}
