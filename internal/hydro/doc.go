// Package hydro is the multi-tenant core of Hydroponics Core: hydroponic
// systems, the measurements recorded against them, and the rules that keep
// one owner's data invisible to every other owner.
//
// The package provides:
//   - Entity types (System, Measurement) and the Principal acting on them
//   - ValidateRange, the single bounds check applied to every reading
//   - Authorize, the single owner comparison applied before every mutation
//   - Filtering, ordering and pagination over an owner's visible set
//   - Store, with a SQLite implementation
//   - Service, the create/retrieve/list/replace/patch/delete operations
//
// Visibility:
//
// Every query is scoped to the principal first. A system or measurement
// belonging to someone else is reported as ErrNotFound on read, update and
// delete, exactly as if it did not exist. ErrForbidden is only produced when
// a principal names a system it does not own as the target of a measurement.
//
// Usage:
//
//	store := hydro.NewSQLiteStore(db.DB)
//	svc := hydro.NewService(store, hydro.PageLimits{Default: 10, Max: 100})
//	svc.SetLogger(log.With("component", "hydro"))
//
//	sys, err := svc.CreateSystem(ctx, principal, hydro.SystemDraft{Name: &name})
package hydro
