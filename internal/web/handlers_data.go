package web

// Handlers for the table view state: filters, sorting and columns.

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/rowgrid/internal/core"
)

// fieldTypeResponse describes a column type offered when adding columns.
type fieldTypeResponse struct {
	Type         core.FieldType        `json:"type"`
	Name         string                `json:"name"`
	Group        string                `json:"group"`
	DataType     core.DataType         `json:"dataType"`
	InitialValue any                   `json:"initialValue"`
	Operators    []core.FilterOperator `json:"operators"`
	Clipboard    bool                  `json:"clipboard"`
	ReadOnly     bool                  `json:"readOnly"`
}

// handleFieldTypes lists the registered field types grouped for the column
// picker.
func (s *Server) handleFieldTypes(w http.ResponseWriter, r *http.Request) {
	defs := core.AllFields()
	out := make([]fieldTypeResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, fieldTypeResponse{
			Type:         def.Type,
			Name:         def.Name,
			Group:        def.Group,
			DataType:     def.DataType,
			InitialValue: def.InitialValue,
			Operators:    core.OperatorsFor(def.Type),
			Clipboard:    def.Clipboard,
			ReadOnly:     def.ReadOnly,
		})
	}
	writeJSON(w, out)
}

type filtersRequest struct {
	Filters     []core.Filter     `json:"filters"`
	Join        core.JoinOperator `json:"joinOperator"`
	Overridable bool              `json:"overridable"`
}

// handleSetTableFilters writes the admin-owned table filters.
func (s *Server) handleSetTableFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.withSession(w, r, func(session *core.Session) error {
		return session.SetTableFilters(r.Context(), req.Filters, req.Join, req.Overridable)
	})
}

// handleSetUserFilters writes the caller's own filters for the table.
func (s *Server) handleSetUserFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.withSession(w, r, func(session *core.Session) error {
		return session.SetUserFilters(r.Context(), req.Filters, req.Join)
	})
}

// handleClearUserFilters clears the caller's filters. With ?override=true
// the table filters are suppressed as well, where the panel allows it.
func (s *Server) handleClearUserFilters(w http.ResponseWriter, r *http.Request) {
	override, _ := strconv.ParseBool(r.URL.Query().Get("override"))
	s.withSession(w, r, func(session *core.Session) error {
		return session.ClearUserFilters(r.Context(), override)
	})
}

// handleSetOrders replaces the manual sort.
func (s *Server) handleSetOrders(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Orders []core.Order `json:"orders"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	for _, o := range req.Orders {
		if o.Key == "" || (o.Direction != core.SortAsc && o.Direction != core.SortDesc) {
			s.respondError(w, r, badRequest("orders need a key and a direction of asc or desc"))
			return
		}
	}
	s.withSession(w, r, func(session *core.Session) error {
		return session.SetOrders(r.Context(), req.Orders)
	})
}

// handleSetHiddenFields stores the caller's hidden columns.
func (s *Server) handleSetHiddenFields(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HiddenFields []string `json:"hiddenFields"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.withSession(w, r, func(session *core.Session) error {
		return session.SetHiddenFields(r.Context(), req.HiddenFields)
	})
}

// handleReorderColumns applies a complete column order.
func (s *Server) handleReorderColumns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys []string `json:"keys"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.withSession(w, r, func(session *core.Session) error {
		return session.ReorderColumns(r.Context(), req.Keys)
	})
}

// handleAddColumn inserts a column at index.
func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Column core.ColumnConfig `json:"column"`
		Index  int               `json:"index"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Column.Key == "" || req.Column.Type == "" {
		s.respondError(w, r, badRequest("column key and type are required"))
		return
	}
	if _, ok := core.GetField(req.Column.Type); !ok {
		s.respondError(w, r, badRequest("unknown field type "+string(req.Column.Type)))
		return
	}
	s.withSession(w, r, func(session *core.Session) error {
		return session.AddColumn(r.Context(), req.Column, req.Index)
	})
}

// handleMoveColumn moves one column to a new index.
func (s *Server) handleMoveColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	key := chi.URLParam(r, "columnKey")
	s.withSession(w, r, func(session *core.Session) error {
		return session.MoveColumn(r.Context(), key, req.Index)
	})
}

// handleRemoveColumn deletes a column from the schema.
func (s *Server) handleRemoveColumn(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "columnKey")
	s.withSession(w, r, func(session *core.Session) error {
		return session.RemoveColumn(r.Context(), key)
	})
}
