package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nckmackenzie/atarah-api/internal/auth"
	"github.com/nckmackenzie/atarah-api/internal/config"
	"github.com/nckmackenzie/atarah-api/internal/db"
	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// ErrEmailExists is returned when an attempt is made to use an email that
// already belongs to another account.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrInvalidCredentials is returned for a bad email/password pair. The
// handler maps it to a generic 401 so the response never reveals which part
// was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidResetCode is returned when a password reset code does not match
// or has expired.
var ErrInvalidResetCode = errors.New("invalid or expired reset code")

// UserInput is the payload for creating or updating a user.
type UserInput struct {
	Name     string
	Email    string
	Contact  string
	UserType string
	Password string
}

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	Create(ctx context.Context, input UserInput) (*models.User, error)
	Update(ctx context.Context, userID utils.SixID, input UserInput) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, userID, actingUserID utils.SixID) error
	ChangePassword(ctx context.Context, userID utils.SixID, currentPassword, newPassword string) error
	InitiatePasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db         *mongo.Database
	cfg        *config.Config
	emailQueue IEmailQueue
	pwPattern  *regexp.Regexp
}

// NewUserService creates a new UserService. emailQueue may be nil in
// contexts that never initiate password resets (tests, one-off tools).
func NewUserService(database *mongo.Database, cfg *config.Config, emailQueue IEmailQueue) IUserService {
	return &userService{
		db:         database,
		cfg:        cfg,
		emailQueue: emailQueue,
		pwPattern:  regexp.MustCompile(cfg.PasswordRegexp),
	}
}

// Authenticate verifies an email/password pair against the stored hash.
// Inactive and deleted users cannot log in.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByEmail finds a non-deleted user by their email address.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"email": normalizeEmail(email), "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a non-deleted user by their ID.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"_id": userID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.String(), err)
	}
	return &user, nil
}

// Create adds a new user with a hashed password.
func (s *userService) Create(ctx context.Context, input UserInput) (*models.User, error) {
	if err := s.validateInput(input, true); err != nil {
		return nil, err
	}

	collection := s.db.Collection(usersCollection)
	email := normalizeEmail(input.Email)

	count, err := collection.CountDocuments(ctx, bson.M{"email": email, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("error checking email uniqueness for %s: %w", email, err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		Contact:      strings.TrimSpace(input.Contact),
		UserType:     models.UserType(input.UserType),
		PasswordHash: hash,
		Active:       true,
		Audit:        models.NewAudit(time.Now().UTC()),
	}
	doc, err := db.InsertOne(ctx, collection, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "email") {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting user %s: %w", email, err)
	}
	return doc.(*models.User), nil
}

// Update modifies name, contact, role and optionally the password of an
// existing user.
func (s *userService) Update(ctx context.Context, userID utils.SixID, input UserInput) (*models.User, error) {
	if err := s.validateInput(input, input.Password != ""); err != nil {
		return nil, err
	}

	email := normalizeEmail(input.Email)
	existing, err := s.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if existing != nil && existing.ID != userID {
		return nil, ErrEmailExists
	}

	set := bson.M{
		"name":       strings.TrimSpace(input.Name),
		"email":      email,
		"contact":    strings.TrimSpace(input.Contact),
		"user_type":  models.UserType(input.UserType),
		"updated_at": time.Now().UTC(),
	}
	if input.Password != "" {
		hash, hashErr := auth.HashPassword(input.Password)
		if hashErr != nil {
			return nil, fmt.Errorf("failed to hash password: %w", hashErr)
		}
		set["password_hash"] = hash
	}

	collection := s.db.Collection(usersCollection)
	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("db error updating user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, userID)
}

// List returns all non-deleted users, newest first.
func (s *userService) List(ctx context.Context) ([]models.User, error) {
	collection := s.db.Collection(usersCollection)
	cursor, err := collection.Find(ctx, bson.M{"deleted": false})
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// Delete soft-deletes a user. A user cannot delete themselves.
func (s *userService) Delete(ctx context.Context, userID, actingUserID utils.SixID) error {
	if userID == actingUserID {
		return NewValidationError("id", "invalid_target", "you cannot delete your own account")
	}
	collection := s.db.Collection(usersCollection)
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"deleted": true, "active": false, "updated_at": now}}
	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error deleting user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *userService) ChangePassword(ctx context.Context, userID utils.SixID, currentPassword, newPassword string) error {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if !s.pwPattern.MatchString(newPassword) {
		return NewValidationError("password", "weak_password", "password does not meet the minimum requirements")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	collection := s.db.Collection(usersCollection)
	update := bson.M{"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()}}
	_, err = collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("db error updating password for user %s: %w", userID.String(), err)
	}
	return nil
}

// InitiatePasswordReset stores a hashed one-time code on the user and emails
// the plain code. An unknown email is reported as success so the endpoint
// cannot be used to probe for accounts.
func (s *userService) InitiatePasswordReset(ctx context.Context, email string) error {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Password reset requested for unknown email %s", email)
			return nil
		}
		return err
	}

	code, err := auth.GenerateResetCode()
	if err != nil {
		return fmt.Errorf("failed to generate reset code: %w", err)
	}
	codeHash, err := auth.HashPassword(code)
	if err != nil {
		return fmt.Errorf("failed to hash reset code: %w", err)
	}

	expires := time.Now().UTC().Add(s.cfg.ResetCodeTTL)
	collection := s.db.Collection(usersCollection)
	update := bson.M{"$set": bson.M{
		"reset_code_hash":    codeHash,
		"reset_code_expires": expires,
		"updated_at":         time.Now().UTC(),
	}}
	if _, err = collection.UpdateOne(ctx, bson.M{"_id": user.ID}, update); err != nil {
		return fmt.Errorf("db error storing reset code for user %s: %w", user.ID.String(), err)
	}

	subject := fmt.Sprintf("%s password reset code", s.cfg.AppName)
	body := fmt.Sprintf("Hello %s,\n\nYour password reset code is: %s\n\nIt expires in %d minutes. If you did not request this, you can ignore this email.\n",
		user.Name, code, int(s.cfg.ResetCodeTTL.Minutes()))
	if s.emailQueue == nil {
		log.Printf("No email queue configured; reset code for %s not delivered", user.Email)
		return nil
	}
	if err := s.emailQueue.EnqueueEmail(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("failed to enqueue reset email for %s: %w", user.Email, err)
	}
	return nil
}

// ResetPassword exchanges a valid reset code for a new password and clears
// the code so it cannot be replayed.
func (s *userService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrInvalidResetCode
		}
		return err
	}
	if user.ResetCodeHash == "" || user.ResetCodeExpires == nil {
		return ErrInvalidResetCode
	}
	if time.Now().UTC().After(*user.ResetCodeExpires) {
		return ErrInvalidResetCode
	}
	if !auth.CheckPasswordHash(code, user.ResetCodeHash) {
		return ErrInvalidResetCode
	}
	if !s.pwPattern.MatchString(newPassword) {
		return NewValidationError("password", "weak_password", "password does not meet the minimum requirements")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	collection := s.db.Collection(usersCollection)
	update := bson.M{
		"$set":   bson.M{"password_hash": hash, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"reset_code_hash": "", "reset_code_expires": ""},
	}
	if _, err = collection.UpdateOne(ctx, bson.M{"_id": user.ID}, update); err != nil {
		return fmt.Errorf("db error resetting password for user %s: %w", user.ID.String(), err)
	}
	return nil
}

func (s *userService) validateInput(input UserInput, requirePassword bool) error {
	var errs *ValidationFailedError
	add := func(field, code, message string) {
		if errs == nil {
			errs = &ValidationFailedError{}
		}
		errs.Errors = append(errs.Errors, NewValidationError(field, code, message).Errors[0])
	}

	if strings.TrimSpace(input.Name) == "" {
		add("name", "required", "name is required")
	}
	if !strings.Contains(input.Email, "@") {
		add("email", "invalid_email", "a valid email address is required")
	}
	if input.UserType != string(models.UserTypeAdmin) && input.UserType != string(models.UserTypeUser) {
		add("userType", "invalid_user_type", "user type must be admin or user")
	}
	if requirePassword && !s.pwPattern.MatchString(input.Password) {
		add("password", "weak_password", "password does not meet the minimum requirements")
	}
	if errs != nil {
		return errs
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
