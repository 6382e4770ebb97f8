// Package core provides the table session logic for the grid admin.
//
// This package holds all domain logic independent of any UI or transport
// layer. It can be used by web handlers, CLI tools, or tests without
// modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Rows: a local buffer of optimistic edits reduced by [ReduceLocalRows]
//     and merged with listener snapshots by [MergeRows].
//   - Columns: [OrderedColumns] projects the schema document; writes go
//     through [ReindexColumns] so indexes stay dense.
//   - Filters: [ResolveFilters] picks between table and user filters;
//     [FilterPanelFor] applies the edit permission policy.
//   - Pagination: [Pager] advances a page counter from scroll positions.
//   - Audit: [Auditor] sends best-effort change notifications.
//   - Session: [Session] is the per-table state store tying these together.
//   - Service: [Service] lists tables and owns open sessions.
//   - Writes: [WriteLimiter] bounds concurrent document writes.
//
// # Field Registry
//
// Field types are registered at init time using [RegisterField]. The
// internal/core/fields package registers the built-in types:
//
//	core.RegisterField(core.FieldDefinition{
//	    Type:      core.FieldNumber,
//	    Name:      "Number",
//	    Group:     "Numeric",
//	    DataType:  core.DataNumber,
//	    Operators: numberOperators,
//	    Clipboard: true,
//	})
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - PERM001-PERM002: Permission errors (write denied, read-only table)
//   - FLT001-FLT002: Filter errors (locked, invalid)
//   - CLIP001-CLIP002: Clipboard errors (denied, unsupported type)
//   - TBL001-TBL004: Table, session, column and row lookups
//   - DB001-DB004: Database connectivity
//   - RATE001-RATE002: Request rate and write slot limits
package core
