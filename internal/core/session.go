package core

// session.go holds the per-table state store.
//
// A Session owns the local row buffer, the latest listener snapshot, the
// schema and user settings documents, and the active query. All state is
// guarded by one mutex; store calls and subscriber callbacks run without it.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Persisted document layout.
const (
	SettingsPath       = "_rowy_/settings"
	schemaPathPrefix   = "_rowy_/settings/schema/"
	groupSchemaPrefix  = "_rowy_/settings/groupSchema/"
	userSettingsPrefix = "_rowy_/userManagement/users/"
)

// SchemaPath returns the schema document path for a table.
func SchemaPath(t TableSettings) string {
	if t.TableType == TableCollectionGroup {
		return groupSchemaPrefix + t.ID
	}
	return schemaPathPrefix + t.ID
}

// UserSettingsPath returns the settings document path for a user.
func UserSettingsPath(uid string) string {
	return userSettingsPrefix + uid
}

// DefaultPageSize is the number of rows per page.
const DefaultPageSize = 30

// EventType names a session change.
type EventType string

const (
	EventRows         EventType = "rows"
	EventSchema       EventType = "schema"
	EventFilters      EventType = "filters"
	EventNotification EventType = "notification"
)

// NotificationVariant is the severity of a user-visible notification.
type NotificationVariant string

const (
	NotifyInfo    NotificationVariant = "info"
	NotifySuccess NotificationVariant = "success"
	NotifyError   NotificationVariant = "error"
)

// Notification is a transient message for the user.
type Notification struct {
	Variant NotificationVariant `json:"variant"`
	Message string              `json:"message"`
	Code    string              `json:"code,omitempty"`
}

// NotificationFor maps err to a notification. Unsupported copy and cut
// actions are informational, everything else is an error.
func NotificationFor(err error) Notification {
	msg := MapError(err)
	n := Notification{Variant: NotifyError, Message: msg.Message, Code: msg.Code}
	if unsupported, ok := asUnsupported(err); ok && !unsupported.Paste {
		n.Variant = NotifyInfo
	}
	return n
}

// Event is sent to session subscribers.
type Event struct {
	Type         EventType     `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
}

// SessionOptions configures a Session. Zero values use the defaults.
type SessionOptions struct {
	PageSize int
	Pager    PagerOptions
	Audit    AuditOptions
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

// Session is the state store for one open table.
type Session struct {
	id       string
	user     User
	table    TableSettings
	store    DocumentStore
	auditor  *Auditor
	pager    *Pager
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	pageSize int

	updateSchemaDoc     UpdateDocFunction
	updateUserDoc       UpdateDocFunction
	updateRowDoc        UpdateCollectionDocFunction
	deleteRowDoc        DeleteCollectionDocFunction
	ctx                 context.Context
	cancel              context.CancelFunc
	subscriberBufferLen int

	mu           sync.Mutex
	schema       TableSchema
	userSettings UserSettings
	local        []Row
	db           []Row
	merged       []Row
	mergedValid  bool
	tombstones   map[string]struct{}
	pending      map[string]int
	acked        map[string]struct{}
	journal      map[string][]localWrite
	nextWrite    int
	resolved     ResolvedFilters
	orders       []Order
	page         int
	hasMore      bool
	loading      bool
	generation   uint64
	unsubscribe  Unsubscribe
	listenErr    error
	closed       bool
	subscribers  map[int]chan Event
	nextSub      int
}

// NewSession creates a session for table. Call Open to load the documents
// and start the listener.
func NewSession(store DocumentStore, backend Backend, user User, table TableSettings, opts SessionOptions) *Session {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Audit.Logger == nil {
		opts.Audit.Logger = opts.Logger
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:                  id,
		user:                user,
		table:               table,
		store:               store,
		auditor:             NewAuditor(backend, table, opts.Audit),
		logger:              opts.Logger.With("table_id", table.ID, "session_id", id),
		now:                 opts.Now,
		newID:               opts.NewID,
		pageSize:            opts.PageSize,
		ctx:                 ctx,
		cancel:              cancel,
		subscriberBufferLen: 16,
		tombstones:          make(map[string]struct{}),
		pending:             make(map[string]int),
		acked:               make(map[string]struct{}),
		journal:             make(map[string][]localWrite),
		subscribers:         make(map[int]chan Event),
		hasMore:             true,
	}

	schemaPath := SchemaPath(table)
	userPath := UserSettingsPath(user.UID)
	s.updateSchemaDoc = func(ctx context.Context, update map[string]any, deleteFields []string) error {
		return store.SetDoc(ctx, schemaPath, update, deleteFields)
	}
	s.updateUserDoc = func(ctx context.Context, update map[string]any, deleteFields []string) error {
		return store.SetDoc(ctx, userPath, update, deleteFields)
	}
	s.updateRowDoc = store.SetDoc
	s.deleteRowDoc = store.DeleteDoc
	s.pager = NewPager(opts.Pager, s.setPage)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// User returns the session owner.
func (s *Session) User() User { return s.user }

// Table returns the table settings.
func (s *Session) Table() TableSettings { return s.table }

// Open loads the schema and user settings and starts the listener.
func (s *Session) Open(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.resubscribe()
	return nil
}

// Reload re-reads the schema and user settings documents.
func (s *Session) Reload(ctx context.Context) error {
	var (
		schema   TableSchema
		settings UserSettings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.store.GetDoc(gctx, SchemaPath(s.table))
		if err != nil {
			return fmt.Errorf("load schema: %w", err)
		}
		return decodeDoc(doc, &schema)
	})
	g.Go(func() error {
		doc, err := s.store.GetDoc(gctx, UserSettingsPath(s.user.UID))
		if err != nil {
			return fmt.Errorf("load user settings: %w", err)
		}
		return decodeDoc(doc, &settings)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.schema = schema
	s.userSettings = settings
	s.resolved = ResolveFilters(FilterInputsFor(schema, settings.Table(s.table.ID)))
	s.orders = slices.Clone(settings.Table(s.table.ID).Sorts)
	if s.resolved.ClearOrders {
		s.orders = nil
	}
	s.mergedValid = false
	s.mu.Unlock()
	return nil
}

// Refresh reloads the settings documents and restarts the listener with the
// resulting query.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.resubscribe()
	s.broadcast(Event{Type: EventSchema})
	return nil
}

// Close stops the listener and the pager, waits for audit calls and closes
// subscriber channels. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	unsub := s.unsubscribe
	s.unsubscribe = nil
	subs := s.subscribers
	s.subscribers = make(map[int]chan Event)
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.cancel()
	s.pager.Close()
	s.auditor.Wait()
	for _, ch := range subs {
		close(ch)
	}
	s.logger.Debug("session closed")
}

// Subscribe returns a channel of change events and a cancel function. Events
// are dropped for a subscriber that is not keeping up.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, s.subscriberBufferLen)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

func (s *Session) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) notifyError(err error) {
	n := NotificationFor(err)
	s.broadcast(Event{Type: EventNotification, Notification: &n})
}

// Snapshot is a consistent copy of the session's visible state.
type Snapshot struct {
	Rows        []Row           `json:"rows"`
	Columns     []ColumnConfig  `json:"columns"`
	Filters     ResolvedFilters `json:"filters"`
	FilterPanel FilterPanel     `json:"filterPanel"`
	Orders      []Order         `json:"orders"`
	Page        int             `json:"page"`
	HasMore     bool            `json:"hasMore"`
	Loading     bool            `json:"loading"`
	ReadOnly    bool            `json:"readOnly"`
	Error       *Notification   `json:"error,omitempty"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	userTable := s.userSettings.Table(s.table.ID)
	orders := s.orders
	if orders == nil {
		orders = []Order{}
	}
	var listenErr *Notification
	if s.listenErr != nil {
		n := NotificationFor(s.listenErr)
		listenErr = &n
	}
	return Snapshot{
		Error:       listenErr,
		Rows:        slices.Clone(s.rowsLocked()),
		Columns:     VisibleColumns(OrderedColumns(s.schema), userTable.HiddenFields),
		Filters:     s.resolved,
		FilterPanel: FilterPanelFor(s.user, FilterInputsFor(s.schema, userTable)),
		Orders:      slices.Clone(orders),
		Page:        s.page,
		HasMore:     s.hasMore,
		Loading:     s.loading,
		ReadOnly:    s.readOnlyLocked(),
	}
}

// Rows returns the merged view.
func (s *Session) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rowsLocked())
}

// Columns returns all columns ordered by index.
func (s *Session) Columns() []ColumnConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return OrderedColumns(s.schema)
}

// Schema returns a copy of the schema document.
func (s *Session) Schema() TableSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.schema
	out.Columns = maps.Clone(s.schema.Columns)
	out.Filters = slices.Clone(s.schema.Filters)
	return out
}

// Filters returns the effective filters.
func (s *Session) Filters() ResolvedFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Page returns the current page.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// LocalRows returns a copy of the local buffer.
func (s *Session) LocalRows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.local)
}

func (s *Session) rowsLocked() []Row {
	if !s.mergedValid {
		merged := MergeRows(s.local, s.db)
		if len(s.tombstones) > 0 {
			merged = slices.DeleteFunc(merged, func(r Row) bool {
				_, gone := s.tombstones[r.Ref.Path]
				return gone
			})
		}
		s.merged = merged
		s.mergedValid = true
	}
	return s.merged
}

func (s *Session) readOnlyLocked() bool {
	return s.table.ReadOnly && !s.user.IsAdmin()
}

// Scroll records a scroll position and may advance the page.
func (s *Session) Scroll(pos ScrollPosition) bool {
	return s.pager.Observe(pos)
}

// setPage is called by the pager after an advance.
func (s *Session) setPage(page int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.page = page
	s.mu.Unlock()
	s.resubscribe()
}

func (s *Session) queryLocked() Query {
	return Query{
		Collection:      s.table.Collection,
		CollectionGroup: s.table.TableType == TableCollectionGroup,
		Filters:         slices.Clone(s.resolved.Filters),
		Join:            s.resolved.Join,
		Orders:          slices.Clone(s.orders),
		Limit:           s.pageSize * (s.page + 1),
	}
}

// resubscribe cancels the current listener and starts one for the current
// query. Snapshots from older subscriptions are dropped by generation.
func (s *Session) resubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	old := s.unsubscribe
	s.unsubscribe = nil
	s.loading = true
	q := s.queryLocked()
	s.mu.Unlock()

	if old != nil {
		old()
	}
	s.pager.SetLoading(true, true)

	unsub, err := s.store.Listen(s.ctx, q,
		func(rows []Row) { s.onSnapshot(gen, q.Limit, rows) },
		func(err error) { s.onListenError(gen, err) },
	)
	if err != nil {
		s.onListenError(gen, err)
		return
	}

	s.mu.Lock()
	if s.closed || s.generation != gen {
		s.mu.Unlock()
		unsub()
		return
	}
	s.unsubscribe = unsub
	s.mu.Unlock()
}

func (s *Session) onSnapshot(gen uint64, limit int, rows []Row) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.db = rows
	s.hasMore = limit > 0 && len(rows) >= limit
	s.loading = false
	s.listenErr = nil
	s.pruneLocked()
	s.mergedValid = false
	hasMore := s.hasMore
	s.mu.Unlock()

	s.broadcast(Event{Type: EventRows})
	s.pager.SetLoading(false, hasMore)
}

func (s *Session) onListenError(gen uint64, err error) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.loading = false
	s.listenErr = err
	s.mu.Unlock()

	s.logger.Error("listener failed", "error", err)
	s.notifyError(err)
}

// pruneLocked drops local entries for acknowledged writes the listener now
// carries, and tombstones for rows the listener no longer returns.
func (s *Session) pruneLocked() {
	for path := range s.acked {
		if s.pending[path] > 0 {
			continue
		}
		if _, ok := FindRow(s.db, path); ok {
			s.dropLocalLocked(path)
		}
	}
	for path := range s.tombstones {
		if _, ok := FindRow(s.db, path); !ok {
			delete(s.tombstones, path)
		}
	}
}

// localWrite is an optimistic action applied to the local buffer and not
// yet reflected by the listener.
type localWrite struct {
	id     int
	action LocalRowAction
}

// beginWrite applies action to the local buffer and marks path pending. The
// returned id settles the write in endWrite.
func (s *Session) beginWrite(path string, action LocalRowAction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	s.local = ReduceLocalRows(s.local, action)
	s.nextWrite++
	s.journal[path] = append(s.journal[path], localWrite{id: s.nextWrite, action: action})
	s.pending[path]++
	delete(s.acked, path)
	s.mergedValid = false
	return s.nextWrite, nil
}

// endWrite settles a pending write. On failure only that write is rolled
// back: the local entry is rebuilt from the listener copy and the writes
// still outstanding for path.
func (s *Session) endWrite(path string, id int, err error) {
	s.mu.Lock()
	s.pending[path]--
	if s.pending[path] <= 0 {
		delete(s.pending, path)
	}
	if err != nil {
		s.rollbackLocked(path, id)
	} else if s.pending[path] == 0 {
		local, inLocal := FindRow(s.local, path)
		db, inDB := FindRow(s.db, path)
		if inLocal && inDB && sameJSON(local.Fields, db.Fields) {
			s.dropLocalLocked(path)
		} else if inLocal {
			s.acked[path] = struct{}{}
		}
	}
	s.mergedValid = false
	s.mu.Unlock()

	s.broadcast(Event{Type: EventRows})
}

// rollbackLocked removes write id from the journal and replays the rest.
func (s *Session) rollbackLocked(path string, id int) {
	writes := slices.DeleteFunc(s.journal[path], func(w localWrite) bool { return w.id == id })
	if len(writes) == 0 {
		s.dropLocalLocked(path)
		return
	}
	s.journal[path] = writes
	s.local = ReduceLocalRows(s.local, DeleteRows{Paths: []string{path}})
	if dbRow, ok := FindRow(s.db, path); ok {
		s.local = ReduceLocalRows(s.local, AddRows{Rows: []Row{{Ref: dbRow.Ref, Fields: cloneMap(dbRow.Fields)}}})
	}
	for _, w := range writes {
		s.local = ReduceLocalRows(s.local, w.action)
	}
}

// dropLocalLocked forgets every local state for path.
func (s *Session) dropLocalLocked(path string) {
	s.local = ReduceLocalRows(s.local, DeleteRows{Paths: []string{path}})
	delete(s.journal, path)
	delete(s.acked, path)
}

func (s *Session) checkWritable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.readOnlyLocked() {
		return ErrReadOnlyTable
	}
	return nil
}

// checkRowPath requires path to address a document directly inside the
// table's collection. For collection-group tables any parent collection
// with the same collection ID qualifies. Settings documents never do.
func (s *Session) checkRowPath(path string) error {
	parts := strings.Split(path, "/")
	if path == "" || len(parts)%2 != 0 || slices.Contains(parts, "") || parts[0] == "_rowy_" {
		return fmt.Errorf("%w: %s", ErrRowNotFound, path)
	}
	collection := path[:strings.LastIndex(path, "/")]
	if s.table.TableType == TableCollectionGroup {
		if parts[len(parts)-2] != RefFromPath(s.table.Collection).ID {
			return fmt.Errorf("%w: %s", ErrRowNotFound, path)
		}
		return nil
	}
	if collection != s.table.Collection {
		return fmt.Errorf("%w: %s", ErrRowNotFound, path)
	}
	return nil
}

// AddRow creates a row with initial column values overlaid by fields.
func (s *Session) AddRow(ctx context.Context, fields map[string]any) (Row, error) {
	if err := s.checkWritable(); err != nil {
		return Row{}, fmt.Errorf("add row: %w", err)
	}

	s.mu.Lock()
	data := initialValues(OrderedColumns(s.schema))
	s.mu.Unlock()

	data = UpdateRowData(data, fields)
	now := s.now()
	if s.table.AuditFieldCreatedBy {
		data["_createdBy"] = s.user.stamp(now)
	}
	if s.table.AuditFieldUpdatedBy {
		data["_updatedBy"] = s.user.stamp(now)
	}

	id := s.newID()
	row := Row{Ref: RowRef{Path: s.table.Collection + "/" + id, ID: id}, Fields: data}
	writeID, err := s.beginWrite(row.Ref.Path, AddRows{Rows: []Row{row}})
	if err != nil {
		return Row{}, fmt.Errorf("add row: %w", err)
	}
	s.broadcast(Event{Type: EventRows})

	err = s.updateRowDoc(ctx, row.Ref.Path, cloneMap(data), nil)
	s.endWrite(row.Ref.Path, writeID, err)
	if err != nil {
		s.logger.Warn("add row failed", "path", row.Ref.Path, "error", err)
		err = fmt.Errorf("add row: %w", err)
		s.notifyError(err)
		return Row{}, err
	}

	s.auditor.AuditChange(ctx, AuditAddRow, id, nil)
	return row, nil
}

// UpdateRow merges fields into the row at path after removing deleteFields.
func (s *Session) UpdateRow(ctx context.Context, path string, fields map[string]any, deleteFields []string) error {
	if err := s.checkWritable(); err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	if err := s.checkRowPath(path); err != nil {
		return fmt.Errorf("update row: %w", err)
	}

	update := cloneMap(fields)
	if update == nil {
		update = map[string]any{}
	}
	if s.table.AuditFieldUpdatedBy {
		update["_updatedBy"] = s.user.stamp(s.now())
	}

	s.mu.Lock()
	if _, inLocal := FindRow(s.local, path); !inLocal {
		if dbRow, ok := FindRow(s.db, path); ok {
			s.local = ReduceLocalRows(s.local, AddRows{Rows: []Row{{Ref: dbRow.Ref, Fields: cloneMap(dbRow.Fields)}}})
		}
	}
	s.mu.Unlock()

	writeID, err := s.beginWrite(path, UpdateRow{Path: path, Fields: update, DeleteFields: deleteFields})
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	s.broadcast(Event{Type: EventRows})

	err = s.updateRowDoc(ctx, path, update, deleteFields)
	s.endWrite(path, writeID, err)
	if err != nil {
		s.logger.Warn("update row failed", "path", path, "error", err)
		err = fmt.Errorf("update row: %w", err)
		s.notifyError(err)
		return err
	}
	return nil
}

// UpdateField sets (or deletes) one field on a row and audits the change.
func (s *Session) UpdateField(ctx context.Context, path, fieldName string, value any, deleteField bool) error {
	s.mu.Lock()
	col, known := columnByField(s.schema, fieldName)
	s.mu.Unlock()
	if known {
		if def, ok := GetField(col.Type); !col.IsEditable() || (ok && def.ReadOnly) {
			return fmt.Errorf("update field: %w", &ValidationError{Field: fieldName, FieldType: col.Type, Reason: "column is not editable"})
		}
	}

	var err error
	if deleteField {
		err = s.UpdateRow(ctx, path, nil, []string{fieldName})
	} else {
		err = s.UpdateRow(ctx, path, nestPath(fieldName, value), nil)
	}
	if err != nil {
		return err
	}

	s.auditor.AuditChange(ctx, AuditUpdateCell, RefFromPath(path).ID, map[string]any{"updatedField": fieldName})
	return nil
}

// DeleteRows deletes rows by path. Every row is attempted; failures are
// aggregated.
func (s *Session) DeleteRows(ctx context.Context, paths ...string) error {
	if err := s.checkWritable(); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}
	for _, path := range paths {
		if err := s.checkRowPath(path); err != nil {
			return fmt.Errorf("delete rows: %w", err)
		}
	}

	var result *multierror.Error
	for _, path := range paths {
		s.mu.Lock()
		removed, wasLocal := FindRow(s.local, path)
		_, wasAcked := s.acked[path]
		writes := s.journal[path]
		s.dropLocalLocked(path)
		s.tombstones[path] = struct{}{}
		s.mergedValid = false
		s.mu.Unlock()
		s.broadcast(Event{Type: EventRows})

		if err := s.deleteRowDoc(ctx, path); err != nil {
			s.mu.Lock()
			delete(s.tombstones, path)
			if wasLocal {
				s.local = ReduceLocalRows(s.local, AddRows{Rows: []Row{removed}})
				if len(writes) > 0 {
					s.journal[path] = writes
				}
				if wasAcked {
					s.acked[path] = struct{}{}
				}
			}
			s.mergedValid = false
			s.mu.Unlock()
			s.logger.Warn("delete row failed", "path", path, "error", err)
			result = multierror.Append(result, fmt.Errorf("delete %s: %w", path, err))
			continue
		}
		s.auditor.AuditChange(ctx, AuditDeleteRow, RefFromPath(path).ID, nil)
	}

	if err := result.ErrorOrNil(); err != nil {
		s.broadcast(Event{Type: EventRows})
		s.notifyError(err)
		return err
	}
	return nil
}

// SetOrders replaces the manual sort and persists it for the user.
func (s *Session) SetOrders(ctx context.Context, orders []Order) error {
	for _, o := range orders {
		if o.Direction != SortAsc && o.Direction != SortDesc {
			return fmt.Errorf("set orders: %w", &ValidationError{Field: o.Key, Reason: fmt.Sprintf("invalid direction %q", o.Direction)})
		}
	}
	sorts, err := docValue(orders)
	if err != nil {
		return fmt.Errorf("set orders: %w", err)
	}
	if err := s.updateUserDoc(ctx, s.userTableUpdate(map[string]any{"sorts": sorts}), nil); err != nil {
		err = fmt.Errorf("set orders: %w", err)
		s.notifyError(err)
		return err
	}

	s.mu.Lock()
	s.orders = slices.Clone(orders)
	s.setUserTableLocked(func(t *UserTableSettings) { t.Sorts = slices.Clone(orders) })
	s.page = 0
	s.mu.Unlock()

	s.pager.Reset()
	s.resubscribe()
	return nil
}

// FilterPanel returns the filter editor policy for the session user.
func (s *Session) FilterPanel() FilterPanel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FilterPanelFor(s.user, s.filterInputsLocked())
}

func (s *Session) filterInputsLocked() FilterInputs {
	return FilterInputsFor(s.schema, s.userSettings.Table(s.table.ID))
}

// SetTableFilters writes the admin-owned table filters.
func (s *Session) SetTableFilters(ctx context.Context, filters []Filter, join JoinOperator, overridable bool) error {
	if err := CheckEditTableFilters(s.user); err != nil {
		return err
	}
	if err := s.validateFilters(filters); err != nil {
		return fmt.Errorf("set table filters: %w", err)
	}
	if filters == nil {
		filters = []Filter{}
	}
	value, err := docValue(filters)
	if err != nil {
		return fmt.Errorf("set table filters: %w", err)
	}
	update := map[string]any{
		"filters":            value,
		"filtersOverridable": overridable,
		"joinOperator":       string(normalizeJoin(join)),
	}
	if err := s.updateSchemaDoc(ctx, update, nil); err != nil {
		err = fmt.Errorf("set table filters: %w", err)
		s.notifyError(err)
		return err
	}

	s.mu.Lock()
	s.schema.Filters = slices.Clone(filters)
	s.schema.FiltersOverridable = overridable
	s.schema.JoinOperator = normalizeJoin(join)
	s.mu.Unlock()

	s.applyFilters()
	return nil
}

// SetUserFilters writes the user's personal filters.
func (s *Session) SetUserFilters(ctx context.Context, filters []Filter, join JoinOperator) error {
	s.mu.Lock()
	in := s.filterInputsLocked()
	s.mu.Unlock()
	if err := CheckEditUserFilters(s.user, in); err != nil {
		return err
	}
	if err := s.validateFilters(filters); err != nil {
		return fmt.Errorf("set user filters: %w", err)
	}
	return s.writeUserFilters(ctx, FilterList(filters...), join)
}

// ClearUserFilters clears the user's filters. With override requested and
// allowed the stored value is null, suppressing the table filters.
func (s *Session) ClearUserFilters(ctx context.Context, override bool) error {
	s.mu.Lock()
	in := s.filterInputsLocked()
	join := s.userSettings.Table(s.table.ID).JoinOperator
	s.mu.Unlock()
	if err := CheckEditUserFilters(s.user, in); err != nil {
		return err
	}
	return s.writeUserFilters(ctx, ClearedUserFilters(s.user, in, override), join)
}

func (s *Session) writeUserFilters(ctx context.Context, filters StoredFilters, join JoinOperator) error {
	value, err := docValue(filters.Value())
	if err != nil {
		return fmt.Errorf("set user filters: %w", err)
	}
	join = normalizeJoin(join)
	update := s.userTableUpdate(map[string]any{
		"filters":      value,
		"joinOperator": string(join),
	})
	if err := s.updateUserDoc(ctx, update, nil); err != nil {
		err = fmt.Errorf("set user filters: %w", err)
		s.notifyError(err)
		return err
	}

	s.mu.Lock()
	s.setUserTableLocked(func(t *UserTableSettings) {
		t.Filters = filters
		t.JoinOperator = join
	})
	s.mu.Unlock()

	s.applyFilters()
	return nil
}

// applyFilters recomputes the effective filters and restarts the listener
// from the first page.
func (s *Session) applyFilters() {
	s.mu.Lock()
	s.resolved = ResolveFilters(s.filterInputsLocked())
	if s.resolved.ClearOrders {
		s.orders = nil
	}
	s.page = 0
	s.mu.Unlock()

	s.broadcast(Event{Type: EventFilters})
	s.pager.Reset()
	s.resubscribe()
}

func (s *Session) validateFilters(filters []Filter) error {
	s.mu.Lock()
	cols := OrderedColumns(s.schema)
	s.mu.Unlock()
	return ValidateFilters(cols, filters)
}

// SetHiddenFields persists the user's hidden columns.
func (s *Session) SetHiddenFields(ctx context.Context, hidden []string) error {
	if hidden == nil {
		hidden = []string{}
	}
	value, err := docValue(hidden)
	if err != nil {
		return fmt.Errorf("set hidden fields: %w", err)
	}
	if err := s.updateUserDoc(ctx, s.userTableUpdate(map[string]any{"hiddenFields": value}), nil); err != nil {
		err = fmt.Errorf("set hidden fields: %w", err)
		s.notifyError(err)
		return err
	}

	s.mu.Lock()
	s.setUserTableLocked(func(t *UserTableSettings) { t.HiddenFields = slices.Clone(hidden) })
	s.mu.Unlock()
	s.broadcast(Event{Type: EventSchema})
	return nil
}

func (s *Session) userTableUpdate(fields map[string]any) map[string]any {
	return map[string]any{"tables": map[string]any{s.table.ID: fields}}
}

func (s *Session) setUserTableLocked(fn func(*UserTableSettings)) {
	if s.userSettings.Tables == nil {
		s.userSettings.Tables = make(map[string]UserTableSettings)
	}
	t := s.userSettings.Tables[s.table.ID]
	fn(&t)
	s.userSettings.Tables[s.table.ID] = t
}

// ReorderColumns persists a new column order. Admin only.
func (s *Session) ReorderColumns(ctx context.Context, keys []string) error {
	return s.editColumns(ctx, "reorder columns", func(cols []ColumnConfig) ([]ColumnConfig, []string, error) {
		out, err := ReorderColumns(cols, keys)
		return out, nil, err
	})
}

// MoveColumn moves one column to index. Admin only.
func (s *Session) MoveColumn(ctx context.Context, key string, index int) error {
	return s.editColumns(ctx, "move column", func(cols []ColumnConfig) ([]ColumnConfig, []string, error) {
		out, err := MoveColumn(cols, key, index)
		return out, nil, err
	})
}

// AddColumn inserts a column at index. Admin only.
func (s *Session) AddColumn(ctx context.Context, col ColumnConfig, index int) error {
	if _, ok := GetField(col.Type); !ok {
		return fmt.Errorf("add column: %w", &ValidationError{Field: col.Key, FieldType: col.Type, Reason: "unknown field type"})
	}
	return s.editColumns(ctx, "add column", func(cols []ColumnConfig) ([]ColumnConfig, []string, error) {
		out, err := InsertColumn(cols, col, index)
		return out, nil, err
	})
}

// RemoveColumn deletes a column from the schema. Admin only.
func (s *Session) RemoveColumn(ctx context.Context, key string) error {
	return s.editColumns(ctx, "remove column", func(cols []ColumnConfig) ([]ColumnConfig, []string, error) {
		out, err := RemoveColumn(cols, key)
		return out, []string{"columns." + key}, err
	})
}

func (s *Session) editColumns(ctx context.Context, op string, edit func([]ColumnConfig) ([]ColumnConfig, []string, error)) error {
	if !s.user.IsAdmin() {
		return fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}

	s.mu.Lock()
	ordered := OrderedColumns(s.schema)
	s.mu.Unlock()

	next, deleteFields, err := edit(ordered)
	if err != nil {
		return err
	}
	columns := ReindexColumns(next)
	value, err := docValue(columns)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.updateSchemaDoc(ctx, map[string]any{"columns": value}, deleteFields); err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		s.notifyError(err)
		return err
	}

	s.mu.Lock()
	s.schema.Columns = columns
	s.mu.Unlock()
	s.broadcast(Event{Type: EventSchema})
	return nil
}

// cell returns the column and current value for a cell.
func (s *Session) cell(path, columnKey string) (ColumnConfig, any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.schema.Columns[columnKey]
	if !ok {
		return ColumnConfig{}, nil, fmt.Errorf("%w: %s", ErrColumnNotFound, columnKey)
	}
	if col.FieldName == "" {
		col.FieldName = col.Key
	}
	row, ok := FindRow(s.rowsLocked(), path)
	if !ok {
		return ColumnConfig{}, nil, fmt.Errorf("%w: %s", ErrRowNotFound, path)
	}
	value, _ := GetPath(row.Fields, col.FieldName)
	return col, value, nil
}

// Copy writes a cell value to the clipboard.
func (s *Session) Copy(ctx context.Context, cb Clipboard, path, columnKey string) error {
	_, _, err := s.copyCell(ctx, cb, path, columnKey, "copy")
	return err
}

// Cut copies a cell value and deletes the field.
func (s *Session) Cut(ctx context.Context, cb Clipboard, path, columnKey string) error {
	col, value, err := s.copyCell(ctx, cb, path, columnKey, "cut")
	if err != nil {
		return err
	}
	if isBlank(value) {
		return nil
	}
	return s.UpdateField(ctx, path, col.FieldName, nil, true)
}

func (s *Session) copyCell(ctx context.Context, cb Clipboard, path, columnKey, op string) (ColumnConfig, any, error) {
	col, value, err := s.cell(path, columnKey)
	if err != nil {
		return col, nil, fmt.Errorf("%s: %w", op, err)
	}
	if !CanCopy(col.Type) {
		err := fmt.Errorf("%s: %w", op, &UnsupportedFieldError{FieldType: col.Type})
		s.notifyError(err)
		return col, nil, err
	}
	text, err := ClipboardText(value)
	if err != nil {
		return col, nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cb.WriteText(ctx, text); err != nil {
		return col, nil, fmt.Errorf("%s: write clipboard: %w", op, err)
	}
	return col, value, nil
}

// Paste reads the clipboard and writes the parsed value to a cell.
func (s *Session) Paste(ctx context.Context, cb Clipboard, path, columnKey string) error {
	col, _, err := s.cell(path, columnKey)
	if err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	text, err := cb.ReadText(ctx)
	if err != nil {
		err = fmt.Errorf("paste: %w: %w", ErrClipboardPermission, err)
		s.notifyError(err)
		return err
	}
	value, err := ParsePaste(col.Type, text)
	if err != nil {
		err = fmt.Errorf("paste: %w", err)
		s.notifyError(err)
		return err
	}
	return s.UpdateField(ctx, path, col.FieldName, value, false)
}

// initialValues returns the new-row values for the columns: a static or null
// default from the column config, else the field type's initial value.
func initialValues(cols []ColumnConfig) map[string]any {
	out := make(map[string]any)
	for _, c := range cols {
		name := c.FieldName
		if name == "" {
			name = c.Key
		}
		if dv, ok := c.Config["defaultValue"].(map[string]any); ok {
			switch dv["type"] {
			case "static":
				out = UpdateRowData(out, nestPath(name, cloneValue(dv["value"])))
				continue
			case "null":
				out = UpdateRowData(out, nestPath(name, nil))
				continue
			}
		}
		def, ok := GetField(c.Type)
		if !ok || def.ReadOnly || def.InitialValue == nil {
			continue
		}
		out = UpdateRowData(out, nestPath(name, cloneValue(def.InitialValue)))
	}
	return out
}

func columnByField(schema TableSchema, fieldName string) (ColumnConfig, bool) {
	for _, c := range schema.Columns {
		if c.FieldName == fieldName || (c.FieldName == "" && c.Key == fieldName) {
			return c, true
		}
	}
	return ColumnConfig{}, false
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	str, ok := v.(string)
	return ok && str == ""
}

// decodeDoc converts a document map into a typed value.
func decodeDoc(doc map[string]any, v any) error {
	if doc == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// docValue converts a typed value into its document representation.
func docValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode document value: %w", err)
	}
	return out, nil
}

func sameJSON(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func asUnsupported(err error) (*UnsupportedFieldError, bool) {
	var target *UnsupportedFieldError
	ok := errors.As(err, &target)
	return target, ok
}
