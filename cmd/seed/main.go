// Command seed inserts the sample catalog, and an admin account when
// ADMIN_EMAIL and ADMIN_PASSWORD are set, into the MySQL store.
package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/equipment-rental/internal/database"
	"github.com/iliyamo/equipment-rental/internal/lib/sl"
	"github.com/iliyamo/equipment-rental/internal/repository"
	"github.com/iliyamo/equipment-rental/internal/seed"
	"github.com/iliyamo/equipment-rental/internal/service"
)

func main() {
	_ = godotenv.Load()
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(ctx, database.Params{
		User: os.Getenv("DB_USER"),
		Pass: os.Getenv("DB_PASS"),
		Host: os.Getenv("DB_HOST"),
		Port: os.Getenv("DB_PORT"),
		Name: os.Getenv("DB_NAME"),
	})
	if err != nil {
		log.Error("open database", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Error("migrate", sl.Err(err))
		os.Exit(1)
	}

	catalog := service.NewCatalogService(repository.NewProductRepo(db), log)
	admin := seed.Admin{
		Email:      os.Getenv("ADMIN_EMAIL"),
		Password:   os.Getenv("ADMIN_PASSWORD"),
		BcryptCost: bcryptCost(),
	}
	res, err := seed.Run(ctx, catalog, repository.NewUserRepo(db), admin, log)
	if err != nil {
		log.Error("seed failed", sl.Err(err))
		os.Exit(1)
	}
	log.Info("seed complete",
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
		slog.Bool("admin_created", res.Admin),
	)
}

// bcryptCost reads BCRYPT_COST; utils.HashPassword falls back to the
// library default for out-of-range values.
func bcryptCost() int {
	n, _ := strconv.Atoi(os.Getenv("BCRYPT_COST"))
	return n
}
