package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/dtos"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// SubjectService maps a finished draft onto one of the two creation
// payloads and submits it.
type SubjectService interface {
	BuildRequest(d models.DraftSubjectProfile, tzone float64) (dtos.CreateSubjectRequest, error)
	Create(ctx context.Context, req dtos.CreateSubjectRequest) (string, error)
}

type subjectAPI interface {
	CreateSubjectKnownTime(ctx context.Context, req dtos.CreateSubjectRequest) (string, error)
	CreateSubjectUnknownTime(ctx context.Context, req dtos.CreateSubjectRequest) (string, error)
}

type subjectService struct {
	api      subjectAPI
	validate *validator.Validate
}

func NewSubjectService(api subjectAPI) SubjectService {
	return &subjectService{api: api, validate: validator.New()}
}

func (s *subjectService) BuildRequest(d models.DraftSubjectProfile, tzone float64) (dtos.CreateSubjectRequest, error) {
	if d.Location.Resolved == nil {
		return dtos.CreateSubjectRequest{}, utils.ErrLocationUnresolved
	}
	req := dtos.CreateSubjectRequest{
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Gender:       string(d.Gender),
		DateOfBirth:  fmt.Sprintf("%04d-%02d-%02d", d.BirthDate.Year, d.BirthDate.Month, d.BirthDate.Day),
		PlaceOfBirth: d.Location.Resolved.FormattedAddress,
		Lat:          d.Location.Resolved.Lat,
		Lon:          d.Location.Resolved.Lon,
		Tzone:        tzone,
		UnknownTime:  true,
	}
	if !d.BirthTime.Unknown {
		h, m, ok := d.BirthTime.Hour24()
		if !ok {
			return dtos.CreateSubjectRequest{}, fmt.Errorf("%w: birth time incomplete", utils.ErrStepInvalid)
		}
		req.Time = utils.Ptr(fmt.Sprintf("%02d:%02d", h, m))
		req.UnknownTime = false
	}
	return req, nil
}

// Create sends req to the known-time or unknown-time endpoint and returns
// the new subject's id. Requests carry no idempotency key, so a retry after
// a lost response can create a duplicate subject.
func (s *subjectService) Create(ctx context.Context, req dtos.CreateSubjectRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: invalid payload: %w", utils.ErrSubjectCreation, err)
	}

	create := s.api.CreateSubjectKnownTime
	if req.UnknownTime {
		create = s.api.CreateSubjectUnknownTime
	}
	id, err := create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrSubjectCreation, err)
	}
	return id, nil
}
