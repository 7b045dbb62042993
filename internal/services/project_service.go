package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nckmackenzie/atarah-api/internal/db"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// ProjectInput is the payload for creating or updating a project.
type ProjectInput struct {
	Name        string
	Description string
	Active      *bool
}

// IProjectService manages projects used to group expenses.
type IProjectService interface {
	Create(ctx context.Context, input ProjectInput) (*models.Project, error)
	Update(ctx context.Context, projectID utils.SixID, input ProjectInput) (*models.Project, error)
	FindByID(ctx context.Context, projectID utils.SixID) (*models.Project, error)
	List(ctx context.Context, activeOnly bool) ([]models.Project, error)
	Delete(ctx context.Context, projectID utils.SixID) error
}

const projectsCollection = "projects"

type projectService struct {
	db *mongo.Database
}

// NewProjectService creates a new ProjectService.
func NewProjectService(database *mongo.Database) IProjectService {
	return &projectService{db: database}
}

func (s *projectService) Create(ctx context.Context, input ProjectInput) (*models.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("name", "required", "project name is required")
	}

	project := &models.Project{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Active:      true,
		Audit:       models.NewAudit(time.Now().UTC()),
	}
	doc, err := db.InsertOne(ctx, s.db.Collection(projectsCollection), project)
	if err != nil {
		return nil, fmt.Errorf("error inserting project %s: %w", project.Name, err)
	}
	return doc.(*models.Project), nil
}

func (s *projectService) Update(ctx context.Context, projectID utils.SixID, input ProjectInput) (*models.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("name", "required", "project name is required")
	}

	set := bson.M{
		"name":        strings.TrimSpace(input.Name),
		"description": strings.TrimSpace(input.Description),
		"updated_at":  time.Now().UTC(),
	}
	if input.Active != nil {
		set["active"] = *input.Active
	}

	result, err := s.db.Collection(projectsCollection).
		UpdateOne(ctx, bson.M{"_id": projectID, "deleted": false}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("db error updating project %s: %w", projectID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, projectID)
}

func (s *projectService) FindByID(ctx context.Context, projectID utils.SixID) (*models.Project, error) {
	var project models.Project
	err := s.db.Collection(projectsCollection).
		FindOne(ctx, bson.M{"_id": projectID, "deleted": false}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding project %s: %w", projectID.String(), err)
	}
	return &project, nil
}

func (s *projectService) List(ctx context.Context, activeOnly bool) ([]models.Project, error) {
	filter := bson.M{"deleted": false}
	if activeOnly {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.M{"name": 1})
	cursor, err := s.db.Collection(projectsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer cursor.Close(ctx)

	var projects []models.Project
	if err = cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}

func (s *projectService) Delete(ctx context.Context, projectID utils.SixID) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "active": false, "updated_at": now}}
	result, err := s.db.Collection(projectsCollection).
		UpdateOne(ctx, bson.M{"_id": projectID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting project %s: %w", projectID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
