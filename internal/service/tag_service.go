package service

import (
	"context"

	"github.com/contatus/contatus/internal/model"
	"github.com/contatus/contatus/internal/pkg/dbutil"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
	"github.com/contatus/contatus/internal/pkg/timeutil"
	"github.com/contatus/contatus/internal/repo"
)

type TagService struct {
	tags *repo.TagRepo
}

func NewTagService(tags *repo.TagRepo) *TagService {
	return &TagService{tags: tags}
}

func (s *TagService) Create(ctx context.Context, orgID, name, color string) (*model.Tag, error) {
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	tag := &model.Tag{
		ID:             newID(),
		OrganizationID: orgID,
		Name:           name,
		Color:          color,
		Ctime:          now,
		Mtime:          now,
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		if dbutil.IsConflict(err) {
			return nil, appErr.ErrConflict
		}
		return nil, err
	}
	return tag, nil
}

func (s *TagService) List(ctx context.Context, orgID string) ([]model.Tag, error) {
	return s.tags.List(ctx, orgID)
}

func (s *TagService) Delete(ctx context.Context, orgID, tagID string) error {
	return s.tags.Delete(ctx, orgID, tagID)
}
