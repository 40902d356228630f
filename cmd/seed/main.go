// Command seed loads users and assets from a YAML file into the configured
// database, and can print an access token per user for local testing.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"zephyrm-backend/internal/config"
	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/repository/postgres"
	"zephyrm-backend/internal/security"
	"zephyrm-backend/internal/service"
)

type seedUser struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
}

type seedAsset struct {
	Title           string    `yaml:"title"`
	Category        string    `yaml:"category"`
	Description     string    `yaml:"description"`
	Location        string    `yaml:"location"`
	AcquisitionDate time.Time `yaml:"acquisition_date"`
	TagID           string    `yaml:"tag_id"`
}

type seedData struct {
	Users  []seedUser  `yaml:"users"`
	Assets []seedAsset `yaml:"assets"`
}

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	dataPath := flag.String("data", "config/seed.yaml", "Path to the seed data file")
	printTokens := flag.Bool("tokens", false, "Print an access token for every seeded user")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	data, err := readSeedFile(*dataPath)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}

	if cfg.Database.Driver == "memory" {
		log.Fatalf("Nothing to seed: driver %q keeps state inside the server process", cfg.Database.Driver)
	}
	driver, err := postgres.DriverName(cfg.Database.Driver)
	if err != nil {
		log.Fatalf("Invalid database driver: %v", err)
	}
	db, err := sql.Open(driver, cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established", "host", cfg.Database.Host, "database", cfg.Database.Database)

	store := postgres.NewStore(db)
	users := service.NewUserService(store.UserRepository)
	assets := service.NewAssetService(store.AssetRepository, store.UserRepository, nil)

	var tokens security.TokenManager
	if *printTokens {
		tokens = security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)
	}

	created, err := seed(context.Background(), data, users, assets, tokens)
	if err != nil {
		log.Fatalf("Failed to seed data: %v", err)
	}
	for _, u := range created {
		if u.Token != "" {
			fmt.Printf("%s\t%s\n", u.Email, u.Token)
		}
	}
	logger.Info("Seed data loaded", "users", len(data.Users), "assets", len(data.Assets))
}

func readSeedFile(path string) (*seedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data seedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &data, nil
}

type seededUser struct {
	ID    int32
	Email string
	Token string
}

// seed creates users first, then assets. Every asset starts FREE. tokens may
// be nil.
func seed(ctx context.Context, data *seedData, users service.UserService, assets service.AssetService, tokens security.TokenManager) ([]seededUser, error) {
	var out []seededUser
	for i, su := range data.Users {
		role := domain.UserRole(su.Role)
		if role == "" {
			role = domain.UserRoleUser
		}
		u := &domain.User{Email: su.Email, Name: su.Name, Role: role}
		if err := users.Create(ctx, u); err != nil {
			return out, fmt.Errorf("user %d (%s): %w", i+1, su.Email, err)
		}
		logger.Info("User created", "userID", u.ID, "email", u.Email, "role", u.Role)

		rec := seededUser{ID: u.ID, Email: u.Email}
		if tokens != nil {
			token, err := tokens.GenerateAccessToken(u.ID, u.Email, []string{string(u.Role)})
			if err != nil {
				return out, fmt.Errorf("token for %s: %w", u.Email, err)
			}
			rec.Token = token
		}
		out = append(out, rec)
	}

	for i, sa := range data.Assets {
		a := &domain.Asset{
			Title:           sa.Title,
			Category:        sa.Category,
			Description:     sa.Description,
			Location:        sa.Location,
			AcquisitionDate: sa.AcquisitionDate,
			State:           domain.AssetStateFree,
		}
		if sa.TagID != "" {
			tag := sa.TagID
			a.TagID = &tag
		}
		if err := assets.Create(ctx, a); err != nil {
			return out, fmt.Errorf("asset %d (%s): %w", i+1, sa.Title, err)
		}
		logger.Info("Asset created", "assetID", a.ID, "title", a.Title)
	}
	return out, nil
}
