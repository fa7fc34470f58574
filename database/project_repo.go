package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rpupo63/portfolio-projects-backend/errs"
	"github.com/rpupo63/portfolio-projects-backend/models"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type ProjectRepo struct {
	db *gorm.DB
}

func NewProjectRepo(db *gorm.DB) *ProjectRepo {
	return &ProjectRepo{db}
}

// FindAll returns all projects, most recently created first
func (r *ProjectRepo) FindAll(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&projects).Error
	return projects, err
}

// FindByID returns a project by its ID, or an error wrapping errs.ErrNotFound.
// It always reads the primary: updates and deletes decide which media to
// reclaim from this row.
func (r *ProjectRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("project %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Add inserts a new project into the database
func (r *ProjectRepo) Add(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// Update writes every column of project, replacing the stored row
func (r *ProjectRepo) Update(ctx context.Context, project *models.Project) error {
	result := r.db.WithContext(ctx).Select("*").Omit("created_at").Where("id = ?", project.ID).Updates(project)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("project %s: %w", project.ID, errs.ErrNotFound)
	}
	return nil
}

// Delete removes a project from the database by id
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Project{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("project %s: %w", id, errs.ErrNotFound)
	}
	return nil
}
