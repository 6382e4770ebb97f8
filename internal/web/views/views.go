// Package views renders the HTML shell and error fragments.
//
// Components are built with templ.ComponentFunc so they compose with any
// generated templ component and render through the same writer interface.
package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// ErrorAlert renders a dismissible error message with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert" data-code="%s"><p class="alert-message">%s</p>`,
			templ.EscapeString(code), templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<p class="alert-code">Code: %s</p></div>`, templ.EscapeString(code))
		return err
	})
}

// Layout wraps body in the page document.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>%s</title></head><body>`,
			templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// TableList renders the table listing grouped by section.
func TableList(user core.User, listing core.TableListing) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		name := user.DisplayName
		if name == "" {
			name = user.UID
		}
		if _, err := fmt.Fprintf(w, `<header><h1>Tables</h1><p class="user">%s</p></header><main>`,
			templ.EscapeString(name)); err != nil {
			return err
		}
		if len(listing.Sections) == 0 {
			if _, err := io.WriteString(w, `<p class="empty">No tables available.</p>`); err != nil {
				return err
			}
		}
		favorites := make(map[string]bool, len(listing.Favorites))
		for _, id := range listing.Favorites {
			favorites[id] = true
		}
		for _, section := range listing.Sections {
			if _, err := fmt.Fprintf(w, `<section><h2>%s</h2><ul>`, templ.EscapeString(section.Name)); err != nil {
				return err
			}
			for _, t := range section.Tables {
				if err := tableItem(w, t, favorites[t.ID]); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</ul></section>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main>`)
		return err
	})
}

func tableItem(w io.Writer, t core.TableSettings, favorite bool) error {
	star := ""
	if favorite {
		star = ` data-favorite="true"`
	}
	label := t.Name
	if label == "" {
		label = t.ID
	}
	if _, err := fmt.Fprintf(w, `<li data-table-id="%s"%s><span class="table-name">%s</span>`,
		templ.EscapeString(t.ID), star, templ.EscapeString(label)); err != nil {
		return err
	}
	if t.Description != "" {
		if _, err := fmt.Fprintf(w, `<span class="table-description">%s</span>`, templ.EscapeString(t.Description)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</li>`)
	return err
}
