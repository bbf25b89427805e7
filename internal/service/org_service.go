package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/contatus/contatus/internal/model"
	"github.com/contatus/contatus/internal/repo"
)

type OrgUsage struct {
	CurrentContacts int `json:"current_contacts"`
	MaxContacts     int `json:"max_contacts"`
}

// OrganizationService answers usage reads off the denormalized counter. The
// short-lived cache absorbs dashboard polling; staleness is bounded by the
// TTL and acceptable for a counter that is itself eventually consistent.
type OrganizationService struct {
	orgs  *repo.OrganizationRepo
	cache *expirable.LRU[string, *model.Organization]
}

func NewOrganizationService(orgs *repo.OrganizationRepo) *OrganizationService {
	return &OrganizationService{
		orgs:  orgs,
		cache: expirable.NewLRU[string, *model.Organization](256, nil, 30*time.Second),
	}
}

func (s *OrganizationService) Get(ctx context.Context, orgID string) (*model.Organization, error) {
	if cached, ok := s.cache.Get(orgID); ok {
		return cached, nil
	}
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(orgID, org)
	return org, nil
}

func (s *OrganizationService) Usage(ctx context.Context, orgID string) (*OrgUsage, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return &OrgUsage{
		CurrentContacts: org.CurrentContacts,
		MaxContacts:     org.MaxContacts,
	}, nil
}
