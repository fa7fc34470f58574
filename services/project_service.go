package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rpupo63/portfolio-projects-backend/errs"
	"github.com/rpupo63/portfolio-projects-backend/models"
	"github.com/rpupo63/portfolio-projects-backend/storage"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

// ProjectStore is the persistence the lifecycle service needs.
// Lookups of unknown ids must return an error wrapping errs.ErrNotFound.
type ProjectStore interface {
	FindAll(ctx context.Context) ([]*models.Project, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Add(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MediaReclaimer deletes media files that records no longer reference.
type MediaReclaimer interface {
	Reclaim(ctx context.Context, ref string) storage.Result
	ReclaimAll(ctx context.Context, refs []string) []storage.Result
}

// ProjectService implements project CRUD and keeps the upload area in step with it:
// media dropped by an update, and all media of a deleted project, are reclaimed.
type ProjectService struct {
	store     ProjectStore
	reclaimer MediaReclaimer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewProjectService(store ProjectStore, reclaimer MediaReclaimer, logger zerolog.Logger) *ProjectService {
	return &ProjectService{
		store:     store,
		reclaimer: reclaimer,
		logger:    logger.With().Str("service", "projects").Logger(),
		now:       time.Now,
	}
}

// List returns every project, newest first.
func (s *ProjectService) List(ctx context.Context) ([]*models.Project, error) {
	projects, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, errs.NewDatabaseError("fetch", "projects", err)
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError("fetch", err)
	}
	return project, nil
}

// Create validates the candidate and stores it with a fresh id and timestamps.
func (s *ProjectService) Create(ctx context.Context, candidate *models.Project) (*models.Project, error) {
	if err := validateCreate(candidate); err != nil {
		return nil, errs.NewValidationError(err)
	}

	project := *candidate
	project.ID = uuid.Nil
	if project.Images == nil {
		project.Images = datatypes.JSONSlice[string]{}
	}
	now := s.now()
	project.CreatedAt = now
	project.UpdatedAt = now

	if err := s.store.Add(ctx, &project); err != nil {
		return nil, errs.NewDatabaseError("create", "project", err)
	}

	s.logger.Info().
		Str("id", project.ID.String()).
		Str("title", project.Title).
		Msg("project created")

	return &project, nil
}

// Update replaces every mutable field of the project with replacement's values.
// Media the replacement no longer references is reclaimed before the write and
// is not restored if the write fails.
func (s *ProjectService) Update(ctx context.Context, id uuid.UUID, replacement *models.Project) (*models.Project, error) {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError("fetch", err)
	}

	// Cleanup must not stop halfway because the client went away.
	reclaimCtx := context.WithoutCancel(ctx)

	if existing.Image != replacement.Image {
		s.discard(existing.ID, s.reclaimer.Reclaim(reclaimCtx, existing.Image))
	}
	if oldVideo := existing.VideoRef(); oldVideo != "" && oldVideo != replacement.VideoRef() {
		s.discard(existing.ID, s.reclaimer.Reclaim(reclaimCtx, oldVideo))
	}
	if removed := RemovedImages(existing.Images, replacement.Images); len(removed) > 0 {
		s.discard(existing.ID, s.reclaimer.ReclaimAll(reclaimCtx, removed)...)
	}

	updated := *replacement
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	if updated.Images == nil {
		updated.Images = datatypes.JSONSlice[string]{}
	}

	if err := s.store.Update(ctx, &updated); err != nil {
		return nil, lookupError("update", err)
	}

	s.logger.Info().Str("id", updated.ID.String()).Msg("project updated")
	return &updated, nil
}

// Delete reclaims all media attached to the project, then removes the record.
func (s *ProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	project, err := s.store.FindByID(ctx, id)
	if err != nil {
		return lookupError("fetch", err)
	}

	reclaimCtx := context.WithoutCancel(ctx)

	s.discard(project.ID, s.reclaimer.ReclaimAll(reclaimCtx, project.MediaRefs())...)

	if err := s.store.Delete(ctx, id); err != nil {
		return lookupError("delete", err)
	}

	s.logger.Info().Str("id", id.String()).Msg("project deleted")
	return nil
}

// RemovedImages returns the distinct entries of old that are absent from current,
// in their original order. Entries compare by exact string value.
func RemovedImages(old, current []string) []string {
	keep := make(map[string]struct{}, len(current))
	for _, ref := range current {
		keep[ref] = struct{}{}
	}

	var removed []string
	seen := make(map[string]struct{}, len(old))
	for _, ref := range old {
		if _, ok := keep[ref]; ok {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		removed = append(removed, ref)
	}
	return removed
}

// discard logs reclamation outcomes; they never change the result of the operation.
func (s *ProjectService) discard(projectID uuid.UUID, results ...storage.Result) {
	for _, res := range results {
		switch res.Outcome {
		case storage.OutcomeFailed:
			s.logger.Warn().
				Err(res.Err).
				Str("projectId", projectID.String()).
				Str("ref", res.Ref).
				Msg("media reclamation failed, file left behind")
		default:
			s.logger.Debug().
				Str("projectId", projectID.String()).
				Str("ref", res.Ref).
				Stringer("outcome", res.Outcome).
				Msg("media reclaimed")
		}
	}
}

func lookupError(operation string, err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return errs.NewNotFound("project")
	}
	return errs.NewDatabaseError(operation, "project", err)
}

func validateCreate(p *models.Project) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Category, validation.Required),
		validation.Field(&p.Location, validation.Required),
		validation.Field(&p.Year, validation.Required),
		validation.Field(&p.Image, validation.Required),
		validation.Field(&p.Description, validation.Required),
		validation.Field(&p.Services, validation.By(requiredJSON)),
		validation.Field(&p.Highlights, validation.By(requiredJSON)),
		validation.Field(&p.Stats, validation.By(requiredJSON)),
	)
}

// requiredJSON rejects structured fields that are absent or hold an empty
// scalar: null, "", false or 0.
func requiredJSON(value interface{}) error {
	raw, _ := value.(datatypes.JSON)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return validation.ErrRequired
	}

	var decoded interface{}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return validation.NewError("validation_invalid_json", "must be valid JSON")
	}
	switch v := decoded.(type) {
	case nil:
		return validation.ErrRequired
	case string:
		if v == "" {
			return validation.ErrRequired
		}
	case bool:
		if !v {
			return validation.ErrRequired
		}
	case float64:
		if v == 0 {
			return validation.ErrRequired
		}
	}
	return nil
}
