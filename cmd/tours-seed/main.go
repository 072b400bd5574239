package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	goerrors "github.com/goliatone/go-errors"
	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/config"
	"github.com/goliatone/go-tours/storage"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

//go:embed data/*.json
var dataFS embed.FS

type seedUser struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Role     tours.UserRole `json:"role"`
	Password string         `json:"password"`
}

type seedTour struct {
	tours.Tour
	// Guides are referenced by email
	Guides []string `json:"guides"`
}

type seedReview struct {
	Tour   string `json:"tour"`
	User   string `json:"user"`
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

func main() {
	configPath := flag.String("config", "", "path to a yaml config file, environment only when empty")
	doImport := flag.Bool("import", false, "load the bundled users, tours and reviews")
	doDelete := flag.Bool("delete", false, "remove all bookings, reviews, tours and users")
	flag.Parse()

	if *doImport == *doDelete {
		fmt.Fprintln(os.Stderr, "usage: tours-seed -import | -delete")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := tours.NewSlogLogger(slog.Default())
	ctx := context.Background()

	db, err := storage.OpenAndMigrate(ctx, storage.Options{
		Driver: cfg.DB.Driver,
		DSN:    cfg.DB.URL,
	})
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := tours.NewRepositoryManager(db)

	if *doDelete {
		err = deleteAll(ctx, repo)
	} else {
		err = importAll(ctx, repo, tours.NewBcryptHasher(), logger)
	}
	if err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seed complete")
}

func readData(name string, out any) error {
	raw, err := dataFS.ReadFile("data/" + name)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "missing seed file "+name)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid seed file "+name)
	}
	return nil
}

func importAll(ctx context.Context, repo tours.RepositoryManager, hasher tours.PasswordHasher, logger tours.Logger) error {
	var (
		users   []seedUser
		list    []seedTour
		reviews []seedReview
	)
	if err := readData("users.json", &users); err != nil {
		return err
	}
	if err := readData("tours.json", &list); err != nil {
		return err
	}
	if err := readData("reviews.json", &reviews); err != nil {
		return err
	}

	userIDs := map[string]uuid.UUID{}
	for _, u := range users {
		hash, err := hasher.HashPassword(u.Password)
		if err != nil {
			return err
		}
		created, err := repo.Users().Register(ctx, &tours.User{
			Name:         u.Name,
			Email:        u.Email,
			Role:         u.Role,
			PasswordHash: hash,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to import user "+u.Email)
		}
		userIDs[created.Email] = created.ID
	}
	logger.Info("users imported", "count", len(users))

	tourIDs := map[string]uuid.UUID{}
	for _, st := range list {
		tour := st.Tour
		for _, email := range st.Guides {
			id, ok := userIDs[email]
			if !ok {
				return goerrors.New("unknown guide "+email, goerrors.CategoryBadInput)
			}
			tour.Guides = append(tour.Guides, id)
		}
		created, err := repo.Tours().Create(ctx, &tour)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to import tour "+st.Name)
		}
		tourIDs[created.Name] = created.ID
	}
	logger.Info("tours imported", "count", len(list))

	for _, r := range reviews {
		tourID, ok := tourIDs[r.Tour]
		if !ok {
			return goerrors.New("unknown tour "+r.Tour, goerrors.CategoryBadInput)
		}
		authorID, ok := userIDs[r.User]
		if !ok {
			return goerrors.New("unknown user "+r.User, goerrors.CategoryBadInput)
		}
		_, err := repo.Reviews().Create(ctx, &tours.Review{
			Review:   r.Review,
			Rating:   r.Rating,
			TourID:   tourID,
			AuthorID: authorID,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to import review")
		}
	}
	logger.Info("reviews imported", "count", len(reviews))
	return nil
}

func deleteAll(ctx context.Context, repo tours.RepositoryManager) error {
	return repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		models := []any{
			(*tours.Booking)(nil),
			(*tours.Review)(nil),
			(*tours.Tour)(nil),
			(*tours.User)(nil),
		}
		for _, model := range models {
			if _, err := tx.NewDelete().Model(model).Where("1 = 1").Exec(ctx); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to empty table")
			}
		}
		return nil
	})
}
