// internal/api/pages/handlers.go
package pages

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/apiutil"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/models"
	"github.com/codr1/Excursions/internal/templates/layouts"
	pagestempl "github.com/codr1/Excursions/internal/templates/pages"
)

const (
	pageQueryTimeout = 5 * time.Second
	maxFeatured      = 6
)

var (
	queries  *dbq.Queries
	appName  = "Excursions"
	initOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbq.Queries, name string) {
	initOnce.Do(func() {
		queries = q
		if name != "" {
			appName = name
		}
	})
}

// GET /
func HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := pagestempl.HomeData{AppName: appName, Featured: featured(r.Context())}
	render(w, r, "", pagestempl.Home(data))
}

// GET /terms
func HandleTerms(w http.ResponseWriter, r *http.Request) {
	render(w, r, "Terms of Service", pagestempl.Terms(appName))
}

// GET /privacy
func HandlePrivacy(w http.ResponseWriter, r *http.Request) {
	render(w, r, "Privacy Policy", pagestempl.Privacy(appName))
}

// featured returns the top-rated approved listings. The home page still
// renders when the catalog cannot be read.
func featured(ctx context.Context) []models.Experience {
	if queries == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pageQueryTimeout)
	defer cancel()

	rows, err := queries.ListApprovedExperiences(ctx, dbq.ListApprovedExperiencesParams{})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to load featured experiences")
		return nil
	}
	items, err := models.ExperiencesFromDB(rows)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to decode featured experiences")
		return nil
	}
	if len(items) > maxFeatured {
		items = items[:maxFeatured]
	}
	return items
}

func render(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	page := layouts.Page{AppName: appName, Title: title, Palette: layouts.DefaultPalette()}
	apiutil.RenderHTMLComponent(r.Context(), w, layouts.Base(page, body), "Failed to render page", "Failed to render page")
}
