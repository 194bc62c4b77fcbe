package host

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/apiutil"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/models"
)

// maxUpcomingBookings caps the upcoming list on the dashboard.
const maxUpcomingBookings = 20

type listingStats struct {
	ExperienceID     int64   `json:"experienceId"`
	Title            string  `json:"title"`
	Status           string  `json:"status"`
	Bookings         int64   `json:"bookings"`
	Guests           int64   `json:"guests"`
	UpcomingBookings int64   `json:"upcomingBookings"`
	Revenue          float64 `json:"revenue"`
}

type dashboardResponse struct {
	ListingsByStatus map[string]int   `json:"listingsByStatus"`
	UpcomingCount    int64            `json:"upcomingCount"`
	TotalGuests      int64            `json:"totalGuests"`
	GrossRevenue     float64          `json:"grossRevenue"`
	Listings         []listingStats   `json:"listings"`
	Upcoming         []models.Booking `json:"upcoming"`
}

// GET /api/v1/host/dashboard
func HandleDashboard(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user := requireHost(w, r)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hostQueryTimeout)
	defer cancel()

	today := models.DateKey(now())
	stats, err := store.Queries.ListHostExperienceStats(ctx, dbq.ListHostExperienceStatsParams{
		HostID: user.ID,
		Today:  today,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load host stats")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	bookings, err := store.Queries.ListBookingsByHost(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load host bookings")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, buildDashboard(stats, bookings, today))
}

func buildDashboard(stats []dbq.HostExperienceStat, bookings []dbq.Booking, today string) dashboardResponse {
	resp := dashboardResponse{
		ListingsByStatus: map[string]int{
			models.ExperienceStatusDraft:    0,
			models.ExperienceStatusPending:  0,
			models.ExperienceStatusApproved: 0,
			models.ExperienceStatusRejected: 0,
		},
		Listings: make([]listingStats, 0, len(stats)),
		Upcoming: []models.Booking{},
	}
	for _, s := range stats {
		resp.ListingsByStatus[s.Status]++
		resp.UpcomingCount += s.UpcomingBookings
		resp.TotalGuests += s.GuestCount
		resp.GrossRevenue += s.Revenue
		resp.Listings = append(resp.Listings, listingStats{
			ExperienceID:     s.ExperienceID,
			Title:            s.Title,
			Status:           s.Status,
			Bookings:         s.BookingCount,
			Guests:           s.GuestCount,
			UpcomingBookings: s.UpcomingBookings,
			Revenue:          s.Revenue,
		})
	}
	for _, b := range bookings {
		if len(resp.Upcoming) == maxUpcomingBookings {
			break
		}
		if b.Status == models.BookingStatusConfirmed && b.SelectedDate >= today {
			resp.Upcoming = append(resp.Upcoming, models.BookingFromDB(b))
		}
	}
	return resp
}
