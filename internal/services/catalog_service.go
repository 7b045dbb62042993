package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nckmackenzie/atarah-api/internal/db"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// ServiceItemInput is the payload for creating or updating a catalog entry.
type ServiceItemInput struct {
	Name        string
	Description string
	Rate        string
	Active      *bool
}

// ICatalogService manages the catalog of billable services.
type ICatalogService interface {
	Create(ctx context.Context, input ServiceItemInput) (*models.ServiceItem, error)
	Update(ctx context.Context, itemID utils.SixID, input ServiceItemInput) (*models.ServiceItem, error)
	FindByID(ctx context.Context, itemID utils.SixID) (*models.ServiceItem, error)
	List(ctx context.Context, activeOnly bool) ([]models.ServiceItem, error)
	Delete(ctx context.Context, itemID utils.SixID) error
}

const serviceItemsCollection = "services"

type catalogService struct {
	db *mongo.Database
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(database *mongo.Database) ICatalogService {
	return &catalogService{db: database}
}

func (s *catalogService) Create(ctx context.Context, input ServiceItemInput) (*models.ServiceItem, error) {
	rate, err := validateServiceItemInput(input)
	if err != nil {
		return nil, err
	}

	item := &models.ServiceItem{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Rate:        rate.String(),
		Active:      true,
		Audit:       models.NewAudit(time.Now().UTC()),
	}
	doc, err := db.InsertOne(ctx, s.db.Collection(serviceItemsCollection), item)
	if err != nil {
		return nil, fmt.Errorf("error inserting service %s: %w", item.Name, err)
	}
	return doc.(*models.ServiceItem), nil
}

func (s *catalogService) Update(ctx context.Context, itemID utils.SixID, input ServiceItemInput) (*models.ServiceItem, error) {
	rate, err := validateServiceItemInput(input)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"name":        strings.TrimSpace(input.Name),
		"description": strings.TrimSpace(input.Description),
		"rate":        rate.String(),
		"updated_at":  time.Now().UTC(),
	}
	if input.Active != nil {
		set["active"] = *input.Active
	}

	result, err := s.db.Collection(serviceItemsCollection).
		UpdateOne(ctx, bson.M{"_id": itemID, "deleted": false}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("db error updating service %s: %w", itemID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, itemID)
}

func (s *catalogService) FindByID(ctx context.Context, itemID utils.SixID) (*models.ServiceItem, error) {
	var item models.ServiceItem
	err := s.db.Collection(serviceItemsCollection).
		FindOne(ctx, bson.M{"_id": itemID, "deleted": false}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding service %s: %w", itemID.String(), err)
	}
	return &item, nil
}

func (s *catalogService) List(ctx context.Context, activeOnly bool) ([]models.ServiceItem, error) {
	filter := bson.M{"deleted": false}
	if activeOnly {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.M{"name": 1})
	cursor, err := s.db.Collection(serviceItemsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.ServiceItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}
	return items, nil
}

func (s *catalogService) Delete(ctx context.Context, itemID utils.SixID) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "active": false, "updated_at": now}}
	result, err := s.db.Collection(serviceItemsCollection).
		UpdateOne(ctx, bson.M{"_id": itemID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting service %s: %w", itemID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func validateServiceItemInput(input ServiceItemInput) (decimal.Decimal, error) {
	if strings.TrimSpace(input.Name) == "" {
		return decimal.Zero, NewValidationError("name", "required", "service name is required")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(input.Rate))
	if err != nil || rate.IsNegative() {
		return decimal.Zero, NewValidationError("rate", "invalid_amount", "rate must be a non-negative amount")
	}
	return rate, nil
}
