package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

func sectionNames(l core.TableListing) []string {
	out := make([]string, len(l.Sections))
	for i, s := range l.Sections {
		out[i] = s.Name
	}
	return out
}

func tableIDs(tables []core.TableSettings) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.ID
	}
	return out
}

var listingTables = []core.TableSettings{
	{ID: "orders", Name: "Orders", Section: "Sales", Roles: []string{"EDITOR"}},
	{ID: "leads", Name: "Leads", Section: " Sales ", Roles: []string{"EDITOR"}, Description: "Inbound prospects"},
	{ID: "notes", Name: "Notes", Roles: []string{"EDITOR"}},
	{ID: "payroll", Name: "Payroll", Section: "HR", Roles: []string{"HR"}},
	{ID: "audit", Name: "Audit Log", Section: "Admin", Roles: []string{"ADMIN"}},
}

func TestBuildTableListing(t *testing.T) {
	tests := []struct {
		name         string
		user         core.User
		favorites    []string
		query        string
		wantTables   []string
		wantSections []string
	}{
		{
			name:         "editor sees own roles sorted by name",
			user:         editorUser,
			wantTables:   []string{"leads", "notes", "orders"},
			wantSections: []string{"Sales", core.DefaultSection},
		},
		{
			name:         "admin sees everything",
			user:         adminUser,
			wantTables:   []string{"audit", "leads", "notes", "orders", "payroll"},
			wantSections: []string{"Admin", "Sales", core.DefaultSection, "HR"},
		},
		{
			name:         "favourites first",
			user:         editorUser,
			favorites:    []string{"notes", "payroll"},
			wantTables:   []string{"leads", "notes", "orders"},
			wantSections: []string{core.FavoritesSection, "Sales", core.DefaultSection},
		},
		{
			name:         "search matches description",
			user:         editorUser,
			query:        "PROSPECT",
			wantTables:   []string{"leads"},
			wantSections: []string{"Sales"},
		},
		{
			name:         "search matches section",
			user:         editorUser,
			query:        "other",
			wantTables:   []string{"notes"},
			wantSections: []string{core.DefaultSection},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.BuildTableListing(listingTables, tt.user, tt.favorites, tt.query)
			if diff := cmp.Diff(tt.wantTables, tableIDs(got.Tables)); diff != "" {
				t.Errorf("tables mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantSections, sectionNames(got)); diff != "" {
				t.Errorf("sections mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildTableListing_FavoritesOnlyVisible(t *testing.T) {
	got := core.BuildTableListing(listingTables, editorUser, []string{"payroll"}, "")
	if len(got.Sections) == 0 || got.Sections[0].Name == core.FavoritesSection {
		t.Errorf("sections = %v, want no favourites section for an inaccessible table", sectionNames(got))
	}
	if diff := cmp.Diff([]string{"payroll"}, got.Favorites); diff != "" {
		t.Errorf("Favorites mismatch (-want +got):\n%s", diff)
	}
}

func TestService_ListTablesAndFavorites(t *testing.T) {
	f := newFixture(t, nil, core.SessionOptions{})
	ctx := context.Background()

	favorites, err := f.service.ToggleFavorite(ctx, editorUser, "orders", true)
	if err != nil {
		t.Fatalf("ToggleFavorite() error = %v", err)
	}
	if diff := cmp.Diff([]string{"orders"}, favorites); diff != "" {
		t.Errorf("favorites mismatch (-want +got):\n%s", diff)
	}

	listing, err := f.service.ListTables(ctx, editorUser, "")
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if diff := cmp.Diff([]string{core.FavoritesSection, "Sales"}, sectionNames(listing)); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}

	favorites, err = f.service.ToggleFavorite(ctx, editorUser, "orders", false)
	if err != nil {
		t.Fatalf("ToggleFavorite(remove) error = %v", err)
	}
	if len(favorites) != 0 {
		t.Errorf("favorites after remove = %v, want empty", favorites)
	}
}

func TestService_Sessions(t *testing.T) {
	f := newFixture(t, nil, core.SessionOptions{})
	ctx := context.Background()

	if _, err := f.service.OpenSession(ctx, editorUser, "payroll"); !errors.Is(err, core.ErrTableNotFound) {
		t.Errorf("OpenSession(no role) error = %v, want ErrTableNotFound", err)
	}
	if _, err := f.service.OpenSession(ctx, editorUser, "missing"); !errors.Is(err, core.ErrTableNotFound) {
		t.Errorf("OpenSession(missing) error = %v, want ErrTableNotFound", err)
	}

	s := f.open(t, editorUser)
	if f.service.SessionCount() != 1 {
		t.Errorf("SessionCount() = %d, want 1", f.service.SessionCount())
	}
	if got, err := f.service.Session(s.ID(), editorUser); err != nil || got != s {
		t.Errorf("Session(owner) = %v, %v, want the open session", got, err)
	}
	if _, err := f.service.Session(s.ID(), adminUser); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("Session(other user) error = %v, want ErrSessionNotFound", err)
	}

	if err := f.service.CloseSession(s.ID()); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if err := f.service.CloseSession(s.ID()); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("CloseSession(twice) error = %v, want ErrSessionNotFound", err)
	}
	if f.service.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d, want 0", f.service.SessionCount())
	}
}
