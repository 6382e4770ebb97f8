package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// OpenTimeout is the maximum duration for loading a table session.
var OpenTimeout = 30 * time.Second

// DefaultSection groups tables with no section.
const DefaultSection = "OTHER"

// FavoritesSection lists the user's favourite tables ahead of the others.
const FavoritesSection = "Favorites"

// Service is the entry point for table listing and session management.
type Service struct {
	store   DocumentStore
	backend Backend
	opts    SessionOptions
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a Service. backend may be nil, which disables auditing.
func NewService(store DocumentStore, backend Backend, opts SessionOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:    store,
		backend:  backend,
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
	}
}

// ProjectSettings reads the project settings document.
func (s *Service) ProjectSettings(ctx context.Context) (ProjectSettings, error) {
	var settings ProjectSettings
	doc, err := s.store.GetDoc(ctx, SettingsPath)
	if err != nil {
		return settings, fmt.Errorf("load project settings: %w", err)
	}
	if err := decodeDoc(doc, &settings); err != nil {
		return settings, fmt.Errorf("load project settings: %w", err)
	}
	return settings, nil
}

// UserSettings reads a user's settings document.
func (s *Service) UserSettings(ctx context.Context, user User) (UserSettings, error) {
	var settings UserSettings
	doc, err := s.store.GetDoc(ctx, UserSettingsPath(user.UID))
	if err != nil {
		return settings, fmt.Errorf("load user settings: %w", err)
	}
	if err := decodeDoc(doc, &settings); err != nil {
		return settings, fmt.Errorf("load user settings: %w", err)
	}
	return settings, nil
}

// TableSection is a named group of tables.
type TableSection struct {
	Name   string          `json:"name"`
	Tables []TableSettings `json:"tables"`
}

// TableListing is the set of tables visible to a user.
type TableListing struct {
	Tables    []TableSettings `json:"tables"`
	Sections  []TableSection  `json:"sections"`
	Favorites []string        `json:"favorites"`
}

// ListTables returns the tables the user may access, sorted by name and
// grouped by section. query, if set, matches id, name, section or
// description case-insensitively.
func (s *Service) ListTables(ctx context.Context, user User, query string) (TableListing, error) {
	project, err := s.ProjectSettings(ctx)
	if err != nil {
		return TableListing{}, err
	}
	settings, err := s.UserSettings(ctx, user)
	if err != nil {
		return TableListing{}, err
	}
	return BuildTableListing(project.Tables, user, settings.FavoriteTables, query), nil
}

// BuildTableListing filters tables by role, normalises sections and groups
// them, favourites first.
func BuildTableListing(tables []TableSettings, user User, favorites []string, query string) TableListing {
	visible := make([]TableSettings, 0, len(tables))
	for _, t := range tables {
		if !user.CanAccess(t) {
			continue
		}
		t.Section = strings.TrimSpace(t.Section)
		if t.Section == "" {
			t.Section = DefaultSection
		}
		visible = append(visible, t)
	}
	slices.SortStableFunc(visible, func(a, b TableSettings) int {
		return strings.Compare(a.Name, b.Name)
	})

	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		visible = slices.DeleteFunc(visible, func(t TableSettings) bool {
			return !strings.Contains(strings.ToLower(t.ID), q) &&
				!strings.Contains(strings.ToLower(t.Name), q) &&
				!strings.Contains(strings.ToLower(t.Section), q) &&
				!strings.Contains(strings.ToLower(t.Description), q)
		})
	}

	listing := TableListing{Tables: visible, Sections: []TableSection{}, Favorites: []string{}}
	if favorites != nil {
		listing.Favorites = slices.Clone(favorites)
	}

	var favs []TableSettings
	for _, id := range favorites {
		if i := slices.IndexFunc(visible, func(t TableSettings) bool { return t.ID == id }); i >= 0 {
			favs = append(favs, visible[i])
		}
	}
	if len(favs) > 0 {
		listing.Sections = append(listing.Sections, TableSection{Name: FavoritesSection, Tables: favs})
	}

	index := make(map[string]int)
	for _, t := range visible {
		i, ok := index[t.Section]
		if !ok {
			i = len(listing.Sections)
			index[t.Section] = i
			listing.Sections = append(listing.Sections, TableSection{Name: t.Section})
		}
		listing.Sections[i].Tables = append(listing.Sections[i].Tables, t)
	}
	return listing
}

// ToggleFavorite adds or removes a table from the user's favourites and
// returns the new list.
func (s *Service) ToggleFavorite(ctx context.Context, user User, tableID string, favorite bool) ([]string, error) {
	settings, err := s.UserSettings(ctx, user)
	if err != nil {
		return nil, err
	}
	favorites := slices.DeleteFunc(slices.Clone(settings.FavoriteTables), func(id string) bool { return id == tableID })
	if favorite {
		favorites = append(favorites, tableID)
	}
	if favorites == nil {
		favorites = []string{}
	}

	value, err := docValue(favorites)
	if err != nil {
		return nil, fmt.Errorf("toggle favorite: %w", err)
	}
	if err := s.store.SetDoc(ctx, UserSettingsPath(user.UID), map[string]any{"favoriteTables": value}, nil); err != nil {
		return nil, fmt.Errorf("toggle favorite: %w", err)
	}
	return favorites, nil
}

// OpenSession loads a table for user and starts its listener.
func (s *Service) OpenSession(ctx context.Context, user User, tableID string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, OpenTimeout)
	defer cancel()

	project, err := s.ProjectSettings(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(project.Tables, func(t TableSettings) bool { return t.ID == tableID })
	if i < 0 || !user.CanAccess(project.Tables[i]) {
		return nil, fmt.Errorf("open %s: %w", tableID, ErrTableNotFound)
	}

	session := NewSession(s.store, s.backend, user, project.Tables[i], s.opts)
	if err := session.Open(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("open %s: %w", tableID, err)
	}

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.logger.Info("session opened",
		"table_id", tableID,
		"session_id", session.ID(),
		"user_id", user.UID)
	return session, nil
}

// Session returns an open session owned by user.
func (s *Service) Session(id string, user User) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || session.User().UID != user.UID {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return session, nil
}

// CloseSession disposes of a session.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	session.Close()
	s.logger.Info("session closed", "session_id", id)
	return nil
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close disposes of every open session.
func (s *Service) Close() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var result *multierror.Error
	for _, id := range ids {
		if err := s.CloseSession(id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
