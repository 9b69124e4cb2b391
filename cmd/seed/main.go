package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/garyjia/doc-approval/internal/config"
	"github.com/garyjia/doc-approval/internal/container"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/doc-approval/pkg/utils"
)

type seedUser struct {
	name    string
	email   string
	role    entity.Role
	manager string // email of the manager, if any
}

var seedUsers = []seedUser{
	{name: "Administrator", email: "admin@example.com", role: entity.RoleAdmin},
	{name: "Maria Manager", email: "manager@example.com", role: entity.RoleManager},
	{name: "Filip Finance", email: "finance@example.com", role: entity.RoleFinance},
	{name: "Anna Nowak", email: "anna@example.com", role: entity.RoleUser, manager: "manager@example.com"},
	{name: "Jan Kowalski", email: "jan@example.com", role: entity.RoleUser, manager: "manager@example.com"},
	{name: "Ewa Wisniewska", email: "ewa@example.com", role: entity.RoleUser, manager: "manager@example.com"},
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	password := flag.String("password", "password", "password assigned to every seeded user")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{Level: "info", OutputPath: "stdout", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := container.ProvideDatabase(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.DB.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal("Failed to hash password", zap.Error(err))
	}

	if err := seed(context.Background(), repository.NewUserRepository(db.DB.DB, logger), string(hash), logger); err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}
	logger.Info("Seeding complete", zap.Int("users", len(seedUsers)))
}

// seed creates missing users and links subordinates to their manager. Existing users are left alone.
func seed(ctx context.Context, repo *repository.UserRepository, passwordHash string, logger *zap.Logger) error {
	ids := make(map[string]int64, len(seedUsers))

	for _, su := range seedUsers {
		if err := utils.ValidateEmail(su.email); err != nil {
			return err
		}

		existing, err := repo.GetByEmail(ctx, su.email)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", su.email, err)
		}
		if existing != nil {
			ids[su.email] = existing.ID
			logger.Info("User exists, skipping", zap.String("email", su.email))
			continue
		}

		u := &entity.User{Name: su.name, Email: su.email, Password: passwordHash, Role: su.role}
		if err := repo.Create(ctx, u); err != nil {
			return fmt.Errorf("create %s: %w", su.email, err)
		}
		ids[su.email] = u.ID
		logger.Info("User created", zap.String("email", su.email), zap.String("role", string(su.role)))
	}

	for _, su := range seedUsers {
		if su.manager == "" {
			continue
		}
		managerID := ids[su.manager]
		if err := repo.SetManager(ctx, ids[su.email], &managerID); err != nil {
			return fmt.Errorf("assign manager to %s: %w", su.email, err)
		}
	}
	return nil
}
