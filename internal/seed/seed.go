// Package seed loads the demo catalog that ships with the binary.
package seed

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/codr1/Excursions/internal/db"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

type Catalog struct {
	Users       []UserSeed       `yaml:"users"`
	Experiences []ExperienceSeed `yaml:"experiences"`
	BlogPosts   []BlogPostSeed   `yaml:"blog_posts"`
}

type UserSeed struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
	Role     string `yaml:"role"`
	Password string `yaml:"password"`
}

type ExperienceSeed struct {
	Host            string   `yaml:"host"`
	Title           string   `yaml:"title"`
	City            string   `yaml:"city"`
	Category        string   `yaml:"category"`
	Description     string   `yaml:"description"`
	DurationMinutes int      `yaml:"duration_minutes"`
	BasePrice       float64  `yaml:"base_price"`
	Currency        string   `yaml:"currency"`
	GroupMin        int      `yaml:"group_min"`
	GroupMax        int      `yaml:"group_max"`
	StartDate       string   `yaml:"start_date"`
	EndDate         string   `yaml:"end_date"`
	TimeSlots       []string `yaml:"time_slots"`
	BlackoutDates   []string `yaml:"blackout_dates"`
	Status          string   `yaml:"status"`
	Rating          float64  `yaml:"rating"`
	ReviewCount     int      `yaml:"review_count"`
}

type BlogPostSeed struct {
	Slug        string    `yaml:"slug"`
	Title       string    `yaml:"title"`
	Author      string    `yaml:"author"`
	PublishedAt time.Time `yaml:"published_at"`
	Excerpt     string    `yaml:"excerpt"`
	Body        string    `yaml:"body"`
}

// Result reports how many rows a Load call inserted.
type Result struct {
	Users       int
	Experiences int
	BlogPosts   int
	Skipped     bool
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(catalogYAML)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse seed catalog: %w", err)
	}
	return catalog, nil
}

// Load inserts catalog into an empty database. A database that already holds
// experiences is left alone and the result reports Skipped.
func Load(ctx context.Context, database *db.DB, catalog Catalog) (Result, error) {
	if database == nil {
		return Result{}, errors.New("seed requires database")
	}
	logger := log.Ctx(ctx)

	count, err := database.Queries.CountExperiences(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count experiences: %w", err)
	}
	if count > 0 {
		logger.Debug().Int64("experiences", count).Msg("Seed skipped: catalog already present")
		return Result{Skipped: true}, nil
	}

	var result Result
	err = database.RunInTx(ctx, func(txdb *db.DB) error {
		hosts := make(map[string]int64, len(catalog.Users))
		for _, u := range catalog.Users {
			id, err := insertUser(ctx, txdb.Queries, u)
			if err != nil {
				return err
			}
			hosts[strings.ToLower(u.Email)] = id
			result.Users++
		}

		for _, e := range catalog.Experiences {
			hostID, ok := hosts[strings.ToLower(e.Host)]
			if !ok {
				return fmt.Errorf("experience %q references unknown host %q", e.Title, e.Host)
			}
			if err := insertExperience(ctx, txdb.Queries, hostID, e); err != nil {
				return err
			}
			result.Experiences++
		}

		for _, p := range catalog.BlogPosts {
			if _, err := txdb.Queries.CreateBlogPost(ctx, dbq.CreateBlogPostParams{
				Slug:        p.Slug,
				Title:       p.Title,
				Excerpt:     strings.TrimSpace(p.Excerpt),
				Body:        strings.TrimSpace(p.Body),
				Author:      p.Author,
				PublishedAt: p.PublishedAt.UTC(),
			}); err != nil {
				return fmt.Errorf("insert blog post %q: %w", p.Slug, err)
			}
			result.BlogPosts++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info().
		Int("users", result.Users).
		Int("experiences", result.Experiences).
		Int("blog_posts", result.BlogPosts).
		Msg("Demo catalog seeded")
	return result, nil
}

func insertUser(ctx context.Context, q *dbq.Queries, u UserSeed) (int64, error) {
	existing, err := q.GetUserByEmail(ctx, u.Email)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("look up user %s: %w", u.Email, err)
	}

	var hash string
	if u.Password != "" {
		raw, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return 0, fmt.Errorf("hash password for %s: %w", u.Email, err)
		}
		hash = string(raw)
	}

	role := u.Role
	if role == "" {
		role = "guest"
	}
	created, err := q.CreateUser(ctx, dbq.CreateUserParams{
		Name:         u.Name,
		Email:        strings.ToLower(u.Email),
		Phone:        u.Phone,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return 0, fmt.Errorf("insert user %s: %w", u.Email, err)
	}
	return created.ID, nil
}

func insertExperience(ctx context.Context, q *dbq.Queries, hostID int64, e ExperienceSeed) error {
	exp := models.Experience{
		HostID:          hostID,
		Title:           e.Title,
		City:            e.City,
		Category:        e.Category,
		Description:     e.Description,
		DurationMinutes: e.DurationMinutes,
		Pricing: models.Pricing{
			BasePrice: e.BasePrice,
			Currency:  e.Currency,
			GroupSize: models.GroupSize{Min: e.GroupMin, Max: e.GroupMax},
		},
		Availability: models.Availability{
			StartDate:     e.StartDate,
			EndDate:       e.EndDate,
			TimeSlots:     e.TimeSlots,
			BlackoutDates: e.BlackoutDates,
		},
		Status:      e.Status,
		Rating:      e.Rating,
		ReviewCount: e.ReviewCount,
	}
	if exp.Status == "" {
		exp.Status = models.ExperienceStatusDraft
	}
	exp.Normalize()
	if err := exp.Validate(); err != nil {
		return fmt.Errorf("invalid experience %q: %w", e.Title, err)
	}

	row, err := q.CreateExperience(ctx, exp.CreateParams())
	if err != nil {
		return fmt.Errorf("insert experience %q: %w", e.Title, err)
	}
	if exp.Status == models.ExperienceStatusApproved {
		if _, err := q.UpdateExperienceStatus(ctx, dbq.UpdateExperienceStatusParams{
			ID:           row.ID,
			FromStatuses: []string{models.ExperienceStatusApproved},
			Status:       models.ExperienceStatusApproved,
			ApprovedAt:   sql.NullTime{Time: row.CreatedAt, Valid: true},
		}); err != nil {
			return fmt.Errorf("stamp approval for %q: %w", e.Title, err)
		}
	}
	return nil
}
