package layouts

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Page describes the shell every HTML page shares.
type Page struct {
	AppName string
	Title   string
	Palette Palette
}

func (p Page) fullTitle() string {
	if p.Title == "" {
		return p.AppName
	}
	return p.Title + " | " + p.AppName
}

// Base wraps body in the site shell with header, nav and footer.
func Base(page Page, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(page.fullTitle())); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</title><link rel="stylesheet" href="/static/css/main.css"><style>`+
			paletteCSSVars(page.Palette)+`</style></head><body><header class="site-header"><a class="brand" href="/">`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(page.AppName)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</a><nav><a href="/">Explore</a><a href="/terms">Terms</a>`+
			`<a href="/privacy">Privacy</a></nav></header><main>`); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main><footer class="site-footer"><a href="/terms">Terms of Service</a>`+
			` &middot; <a href="/privacy">Privacy Policy</a></footer></body></html>`)
		return err
	})
}
