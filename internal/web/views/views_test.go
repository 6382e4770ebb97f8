package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

func TestErrorAlert_Escapes(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert(`<script>x</script>`, "Try again", "PERM001").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>") {
		t.Errorf("output contains unescaped markup: %s", out)
	}
	for _, want := range []string{"&lt;script&gt;", "Try again", "PERM001"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestTableList(t *testing.T) {
	listing := core.TableListing{
		Sections: []core.TableSection{
			{Name: core.FavoritesSection, Tables: []core.TableSettings{{ID: "orders", Name: "Orders"}}},
			{Name: "Sales", Tables: []core.TableSettings{{ID: "orders", Name: "Orders", Description: "All & more"}}},
		},
		Favorites: []string{"orders"},
	}
	var buf bytes.Buffer
	page := Layout("Tables", TableList(core.User{UID: "u1", DisplayName: "Ada"}, listing))
	if err := page.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<!DOCTYPE html>", "Ada", "<h2>Favorites</h2>", "<h2>Sales</h2>", `data-favorite="true"`, "All &amp; more"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestTableList_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := TableList(core.User{UID: "u1"}, core.TableListing{}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No tables available") {
		t.Errorf("output = %q, want empty message", buf.String())
	}
}
