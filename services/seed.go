package services

import (
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/repository"
)

type seedAccount struct {
	email string
	name  string
	plan  models.Plan
}

var demoAccounts = []seedAccount{
	{email: "admin@example.com", name: "Admin", plan: models.PlanBusiness},
	{email: "v1@example.com", name: "V1 User", plan: models.PlanFree},
	{email: "v2@example.com", name: "V2 User", plan: models.PlanPlus},
	{email: "v3@example.com", name: "V3 User", plan: models.PlanFree},
}

const demoPassword = "admin123"

// Seeder provisions the demo accounts on startup. Existing accounts are
// left untouched so reseeding an old database is safe.
type Seeder struct {
	users         repository.UserRepository
	chats         repository.ChatRepository
	notifications repository.NotificationRepository
	credits       CreditService
}

func NewSeeder(users repository.UserRepository, chats repository.ChatRepository, notifications repository.NotificationRepository, credits CreditService) *Seeder {
	return &Seeder{users: users, chats: chats, notifications: notifications, credits: credits}
}

// Seed creates the demo users with a profile, a starter thread, their
// plan and a welcome notification. Idempotent per account.
func (s *Seeder) Seed() error {
	for _, account := range demoAccounts {
		if err := s.ensureAccount(account); err != nil {
			return fmt.Errorf("seed %s: %w", account.email, err)
		}
	}
	log.Printf("INFO: [Seeder] Demo accounts ready (%d).", len(demoAccounts))
	return nil
}

func (s *Seeder) ensureAccount(account seedAccount) error {
	existing, err := s.users.GetUserByEmail(account.email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Email:        account.email,
		Name:         account.name,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(user); err != nil {
		return err
	}
	fullName := account.name
	if err := s.users.SaveProfile(&models.Profile{ID: user.ID, FullName: &fullName}); err != nil {
		return err
	}

	if _, err := s.credits.SetPlan(user.ID, string(account.plan)); err != nil {
		return err
	}

	title := "General"
	if err := s.chats.CreateChat(&models.Chat{UserID: user.ID, Title: &title}); err != nil {
		return err
	}

	welcome := &models.Notification{
		UserID: user.ID,
		Title:  "Welcome",
		Body:   fmt.Sprintf("Your account is ready on the %s plan.", account.plan),
	}
	if err := s.notifications.Create(welcome); err != nil {
		return err
	}

	log.Printf("INFO: [Seeder] Created demo account %s (plan %s).", account.email, account.plan)
	return nil
}
