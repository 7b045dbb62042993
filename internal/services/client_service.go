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

// ClientInput is the payload for creating or updating a client.
type ClientInput struct {
	Name    string
	Email   string
	Contact string
	Address string
	KraPin  string
	Active  *bool
}

// IClientService defines the interface for client (customer) operations.
type IClientService interface {
	Create(ctx context.Context, input ClientInput) (*models.Client, error)
	Update(ctx context.Context, clientID utils.SixID, input ClientInput) (*models.Client, error)
	FindByID(ctx context.Context, clientID utils.SixID) (*models.Client, error)
	List(ctx context.Context, search string, activeOnly bool) ([]models.Client, error)
	Delete(ctx context.Context, clientID utils.SixID) error
}

const (
	clientsCollection  = "clients"
	invoicesCollection = "invoices"
)

type clientService struct {
	db *mongo.Database
}

// NewClientService creates a new ClientService.
func NewClientService(database *mongo.Database) IClientService {
	return &clientService{db: database}
}

// Create adds a new client.
func (s *clientService) Create(ctx context.Context, input ClientInput) (*models.Client, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("name", "required", "client name is required")
	}

	client := &models.Client{
		Name:    strings.TrimSpace(input.Name),
		Email:   normalizeEmail(input.Email),
		Contact: strings.TrimSpace(input.Contact),
		Address: strings.TrimSpace(input.Address),
		KraPin:  strings.ToUpper(strings.TrimSpace(input.KraPin)),
		Active:  true,
		Audit:   models.NewAudit(time.Now().UTC()),
	}
	doc, err := db.InsertOne(ctx, s.db.Collection(clientsCollection), client)
	if err != nil {
		return nil, fmt.Errorf("error inserting client %s: %w", client.Name, err)
	}
	return doc.(*models.Client), nil
}

// Update modifies an existing client.
func (s *clientService) Update(ctx context.Context, clientID utils.SixID, input ClientInput) (*models.Client, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("name", "required", "client name is required")
	}

	set := bson.M{
		"name":       strings.TrimSpace(input.Name),
		"email":      normalizeEmail(input.Email),
		"contact":    strings.TrimSpace(input.Contact),
		"address":    strings.TrimSpace(input.Address),
		"kra_pin":    strings.ToUpper(strings.TrimSpace(input.KraPin)),
		"updated_at": time.Now().UTC(),
	}
	if input.Active != nil {
		set["active"] = *input.Active
	}

	collection := s.db.Collection(clientsCollection)
	result, err := collection.UpdateOne(ctx, bson.M{"_id": clientID, "deleted": false}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("db error updating client %s: %w", clientID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, clientID)
}

// FindByID returns a non-deleted client by ID.
func (s *clientService) FindByID(ctx context.Context, clientID utils.SixID) (*models.Client, error) {
	var client models.Client
	err := s.db.Collection(clientsCollection).
		FindOne(ctx, bson.M{"_id": clientID, "deleted": false}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding client %s: %w", clientID.String(), err)
	}
	return &client, nil
}

// List returns non-deleted clients sorted by name, optionally filtered by a
// case-insensitive name search.
func (s *clientService) List(ctx context.Context, search string, activeOnly bool) ([]models.Client, error) {
	filter := bson.M{"deleted": false}
	if activeOnly {
		filter["active"] = true
	}
	if search = strings.TrimSpace(search); search != "" {
		filter["name"] = bson.M{"$regex": regexEscape(search), "$options": "i"}
	}

	opts := options.Find().SetSort(bson.M{"name": 1})
	cursor, err := s.db.Collection(clientsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer cursor.Close(ctx)

	var clients []models.Client
	if err = cursor.All(ctx, &clients); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	return clients, nil
}

// Delete soft-deletes a client. Clients with invoices on file cannot be
// removed, only deactivated.
func (s *clientService) Delete(ctx context.Context, clientID utils.SixID) error {
	count, err := s.db.Collection(invoicesCollection).
		CountDocuments(ctx, bson.M{"client_id": clientID, "deleted": false})
	if err != nil {
		return fmt.Errorf("error checking invoices for client %s: %w", clientID.String(), err)
	}
	if count > 0 {
		return NewValidationError("id", "client_in_use", "client has invoices and cannot be deleted")
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "active": false, "updated_at": now}}
	result, err := s.db.Collection(clientsCollection).
		UpdateOne(ctx, bson.M{"_id": clientID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting client %s: %w", clientID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// regexEscape quotes regex metacharacters in a user-supplied search string.
func regexEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
