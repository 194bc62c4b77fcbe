// Package pages renders the public HTML pages.
package pages

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/codr1/Excursions/internal/models"
)

type HomeData struct {
	AppName  string
	Featured []models.Experience
}

type section struct {
	Heading string
	Body    string
}

// Home lists featured experiences.
func Home(data HomeData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section class="hero"><h1>Discover experiences hosted by locals</h1>`+
			`<p>Book small-group tours, workshops and tastings with `+templ.EscapeString(data.AppName)+`.</p></section>`); err != nil {
			return err
		}
		if len(data.Featured) == 0 {
			_, err := io.WriteString(w, `<p class="empty">New experiences are on their way. Check back soon.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<section class="featured"><h2>Featured experiences</h2><ul class="cards">`); err != nil {
			return err
		}
		for _, exp := range data.Featured {
			if err := experienceCard(w, exp); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</ul></section>`)
		return err
	})
}

func experienceCard(w io.Writer, exp models.Experience) error {
	_, err := fmt.Fprintf(w,
		`<li class="card" data-slug="%s"><h3>%s</h3><p class="meta">%s &middot; %s</p>`+
			`<p class="price">From %s %s per person</p><p class="rating">%s (%d reviews)</p></li>`,
		templ.EscapeString(exp.Slug),
		templ.EscapeString(exp.Title),
		templ.EscapeString(exp.City),
		templ.EscapeString(exp.Category),
		templ.EscapeString(exp.Pricing.Currency),
		strconv.FormatFloat(exp.Pricing.BasePrice, 'f', 2, 64),
		strconv.FormatFloat(exp.Rating, 'f', 1, 64),
		exp.ReviewCount,
	)
	return err
}

// Terms renders the terms of service.
func Terms(appName string) templ.Component {
	return legal("Terms of Service", []section{
		{"Bookings", appName + " connects guests with independent hosts. A booking is confirmed once payment details are accepted and a confirmation code is issued."},
		{"Cancellations", "Guests may cancel a confirmed booking with its confirmation code before the experience takes place. Hosts may set their own refund terms."},
		{"Hosts", "Listings are reviewed before they are published. Hosts are responsible for the accuracy of their descriptions, prices and availability."},
		{"Conduct", "Be respectful to hosts and fellow guests. We may remove content or accounts that break these terms."},
	})
}

// Privacy renders the privacy policy.
func Privacy(appName string) templ.Component {
	return legal("Privacy Policy", []section{
		{"What we collect", "We store the contact details you give us when you book or write to us, and the preferences you save in your settings."},
		{"Payments", "Card numbers are never stored. We keep only the last four digits for your records."},
		{"Email", appName + " sends booking confirmations, reminders and cancellation notices. You can turn off notifications in your settings."},
		{"Contact", "Questions about your data can be sent through the contact form."},
	})
}

func legal(title string, sections []section) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<article class="legal"><h1>`+templ.EscapeString(title)+`</h1>`); err != nil {
			return err
		}
		for _, s := range sections {
			if _, err := fmt.Fprintf(w, `<h2>%s</h2><p>%s</p>`, templ.EscapeString(s.Heading), templ.EscapeString(s.Body)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</article>`)
		return err
	})
}
