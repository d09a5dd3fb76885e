package views

import (
	"context"
	"fmt"
	"io"
	"time"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
)

const (
	bodyClass    = "min-h-screen bg-white text-gray-900 antialiased"
	darkClass    = "dark:bg-gray-950 dark:text-gray-100"
	articleClass = "mx-auto max-w-3xl px-4 py-8"
	headerClass  = "mb-6 border-b border-gray-200 pb-4"
	linkClass    = "text-sm text-blue-600 underline"
)

// ReaderEntry is what the reader page shows for one entry
type ReaderEntry struct {
	Title       string
	Author      string
	PublishedAt time.Time
	Link        *string
	// HTML is already sanitized and transformed
	HTML string
}

// ReaderOptions tweaks the page chrome
type ReaderOptions struct {
	DarkMode bool
	// Class is merged over the article classes
	Class string
	// Now is used for relative dates; zero means time.Now
	Now time.Time
}

// ReaderPage renders a standalone page for one newsletter entry
func ReaderPage(entry ReaderEntry, opts ReaderOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := bodyClass
		if opts.DarkMode {
			body = twmerge.Merge(bodyClass, darkClass)
		}

		if _, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>%s</title></head><body class="%s">`,
			templ.EscapeString(entry.Title), templ.EscapeString(body)); err != nil {
			return err
		}

		if err := readerArticle(entry, opts).Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func readerArticle(entry ReaderEntry, opts ReaderOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<article class="%s"><header class="%s"><h1 class="text-2xl font-semibold">%s</h1>`,
			templ.EscapeString(twmerge.Merge(articleClass, opts.Class)),
			headerClass,
			templ.EscapeString(entry.Title)); err != nil {
			return err
		}

		if meta := byline(entry, opts.Now); meta != "" {
			if _, err := fmt.Fprintf(w, `<p class="text-sm text-gray-500">%s</p>`, templ.EscapeString(meta)); err != nil {
				return err
			}
		}

		if entry.Link != nil && *entry.Link != "" {
			if _, err := fmt.Fprintf(w, `<a class="%s" href="%s" target="_blank" rel="noopener noreferrer">View online</a>`,
				linkClass, templ.EscapeString(*entry.Link)); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, `</header>`); err != nil {
			return err
		}
		if err := templ.Raw(entry.HTML).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</article>`)
		return err
	})
}

// byline joins the author and a relative publish date
func byline(entry ReaderEntry, now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	when := ""
	if !entry.PublishedAt.IsZero() {
		when = humanize.RelTime(entry.PublishedAt, now, "ago", "from now")
	}
	switch {
	case entry.Author != "" && when != "":
		return entry.Author + " · " + when
	case entry.Author != "":
		return entry.Author
	default:
		return when
	}
}
