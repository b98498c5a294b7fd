package repository

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/napassornsp/chat-new/models"
)

// UserRepository defines the interface for users, profiles and bearer
// sessions. Identity resolution is a thin lookup; all hashing happens
// at the call sites.
type UserRepository interface {
	CreateUser(user *models.User) error
	// GetUserByEmail returns (nil, nil) when no account matches.
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	SaveUser(user *models.User) error

	GetProfile(userID uint) (*models.Profile, error)
	SaveProfile(profile *models.Profile) error

	CreateSession(session *models.Session) error
	// ResolveToken returns the user owning a bearer token, or
	// (nil, nil) for an unknown token.
	ResolveToken(token string) (*models.User, error)
	DeleteSession(token string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// CreateUser creates a new user account.
func (r *userRepository) CreateUser(user *models.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := r.db.Create(user).Error; err != nil {
		log.Printf("ERROR: [UserRepository] Failed to create user '%s': %v", user.Email, err)
		return fmt.Errorf("failed to create user '%s': %w", user.Email, err)
	}
	log.Printf("INFO: [UserRepository] Created user ID %d (%s).", user.ID, user.Email)
	return nil
}

// GetUserByEmail looks an account up by its (case-insensitive) email.
func (r *userRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch user by email: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by primary key.
func (r *userRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch user ID %d: %w", id, err)
	}
	return &user, nil
}

// SaveUser persists the full user state.
func (r *userRepository) SaveUser(user *models.User) error {
	if user == nil || user.ID == 0 {
		return errors.New("user with ID required for save")
	}
	if err := r.db.Save(user).Error; err != nil {
		return fmt.Errorf("failed to save user ID %d: %w", user.ID, err)
	}
	return nil
}

// GetProfile retrieves the profile row keyed by the user's id, or
// (nil, nil) when none exists yet.
func (r *userRepository) GetProfile(userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.First(&profile, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch profile for user %d: %w", userID, err)
	}
	return &profile, nil
}

// SaveProfile creates or updates the profile row.
func (r *userRepository) SaveProfile(profile *models.Profile) error {
	if profile == nil || profile.ID == 0 {
		return errors.New("profile with user ID required for save")
	}
	if err := r.db.Save(profile).Error; err != nil {
		return fmt.Errorf("failed to save profile for user %d: %w", profile.ID, err)
	}
	return nil
}

// CreateSession stores a bearer session.
func (r *userRepository) CreateSession(session *models.Session) error {
	if session == nil || session.Token == "" {
		return errors.New("session with token required")
	}
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session for user %d: %w", session.UserID, err)
	}
	return nil
}

// ResolveToken maps a bearer token to its user.
func (r *userRepository) ResolveToken(token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	var session models.Session
	err := r.db.First(&session, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve session token: %w", err)
	}
	return r.GetUserByID(session.UserID)
}

// DeleteSession removes a bearer session; deleting an unknown token is
// not an error.
func (r *userRepository) DeleteSession(token string) error {
	if token == "" {
		return nil
	}
	if err := r.db.Delete(&models.Session{}, "token = ?", token).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
