package layouts

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func TestBaseEscapesTitleAndRendersBody(t *testing.T) {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<p>hello</p>")
		return err
	})

	var buf bytes.Buffer
	page := Page{AppName: "Excursions", Title: "<Terms>"}
	if err := Base(page, body).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "<title>&lt;Terms&gt; | Excursions</title>") {
		t.Fatalf("expected escaped title, got %q", out)
	}
	if !strings.Contains(out, "<main><p>hello</p></main>") {
		t.Fatalf("expected body inside main, got %q", out)
	}
}

func TestPaletteCSSVarsFallsBackOnInvalidColors(t *testing.T) {
	got := paletteCSSVars(Palette{Primary: "red", Accent: "#abc"})
	d := DefaultPalette()

	if !strings.Contains(got, "--brand-primary:"+d.Primary) {
		t.Fatalf("expected default primary, got %q", got)
	}
	if !strings.Contains(got, "--brand-accent:#abc") {
		t.Fatalf("expected custom accent, got %q", got)
	}
}
