package hydro

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Logger is the logging interface used by Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MeasurementSink is notified after a measurement has been committed.
// Sinks must not block; a returned error is logged and never fails the write.
type MeasurementSink interface {
	MeasurementRecorded(ctx context.Context, owner Principal, m Measurement) error
}

// AuditRecorder receives one entry per committed mutation.
type AuditRecorder interface {
	RecordMutation(ctx context.Context, p Principal, action, entityType string, entityID int64)
}

// Audit actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// DefaultLastMeasurements is used when the caller does not say how many.
const DefaultLastMeasurements = 10

// Service implements create/retrieve/list/replace/patch/delete for systems
// and measurements on behalf of a principal.
//
// Thread Safety: all methods are safe for concurrent use. Sinks and the
// auditor must be registered before the service handles requests.
type Service struct {
	store   Store
	limits  PageLimits
	now     func() time.Time
	logger  Logger
	sinks   []MeasurementSink
	auditor AuditRecorder
}

// NewService creates a service over store with the given page size limits.
func NewService(store Store, limits PageLimits) *Service {
	if limits.Default < 1 {
		limits.Default = 10
	}
	return &Service{
		store:  store,
		limits: limits,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock replaces the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AddSink registers a sink for newly recorded measurements.
func (s *Service) AddSink(sink MeasurementSink) {
	s.sinks = append(s.sinks, sink)
}

// SetAuditor sets the recorder for committed mutations.
func (s *Service) SetAuditor(a AuditRecorder) {
	s.auditor = a
}

// PageLimits returns the configured page size limits.
func (s *Service) PageLimits() PageLimits {
	return s.limits
}

// CreateSystem creates a system owned by p.
func (s *Service) CreateSystem(ctx context.Context, p Principal, d SystemDraft) (*System, error) {
	if err := validateSystemName(d.Name); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sys := &System{
		OwnerID:     p.UserID,
		Owner:       p.Username,
		Name:        *d.Name,
		Description: d.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSystem(ctx, sys); err != nil {
		return nil, err
	}
	s.audit(ctx, p, ActionCreate, "system", sys.ID)
	return sys, nil
}

// GetSystem returns one of p's systems.
func (s *Service) GetSystem(ctx context.Context, p Principal, id int64) (*System, error) {
	return s.store.FindSystem(ctx, p.UserID, id)
}

// ListSystems returns one page of p's systems ordered by name.
func (s *Service) ListSystems(ctx context.Context, p Principal, f SystemFilter, req PageRequest) (*Page[System], error) {
	req, err := s.limits.normalize(req)
	if err != nil {
		return nil, err
	}
	systems, total, err := s.store.ListSystems(ctx, p.UserID, f, req.Size, req.offset())
	if err != nil {
		return nil, err
	}
	return newPage(req, total, systems), nil
}

// ReplaceSystem overwrites every writable field of a system. An omitted
// description becomes null.
func (s *Service) ReplaceSystem(ctx context.Context, p Principal, id int64, d SystemDraft) (*System, error) {
	sys, err := s.resolveSystem(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := validateSystemName(d.Name); err != nil {
		return nil, err
	}
	sys.Name = *d.Name
	sys.Description = d.Description
	return s.saveSystem(ctx, p, sys)
}

// PatchSystem changes only the supplied fields of a system.
func (s *Service) PatchSystem(ctx context.Context, p Principal, id int64, patch SystemPatch) (*System, error) {
	sys, err := s.resolveSystem(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if err := validateSystemName(patch.Name); err != nil {
			return nil, err
		}
		sys.Name = *patch.Name
	}
	sys.Description = patch.Description.apply(sys.Description)
	return s.saveSystem(ctx, p, sys)
}

// DeleteSystem deletes a system and, by cascade, all of its measurements.
func (s *Service) DeleteSystem(ctx context.Context, p Principal, id int64) error {
	if _, err := s.resolveSystem(ctx, p, id); err != nil {
		return err
	}
	if err := s.store.DeleteSystem(ctx, p.UserID, id); err != nil {
		return err
	}
	s.audit(ctx, p, ActionDelete, "system", id)
	return nil
}

// resolveSystem finds the system within p's visible set, then checks the
// resolved owner with the guard.
func (s *Service) resolveSystem(ctx context.Context, p Principal, id int64) (*System, error) {
	sys, err := s.store.FindSystem(ctx, p.UserID, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(p, sys.OwnerID); err != nil {
		return nil, err
	}
	return sys, nil
}

func (s *Service) saveSystem(ctx context.Context, p Principal, sys *System) (*System, error) {
	sys.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateSystem(ctx, sys); err != nil {
		return nil, err
	}
	s.audit(ctx, p, ActionUpdate, "system", sys.ID)
	return sys, nil
}

// CreateMeasurement records readings against one of p's systems.
//
// Fails with ErrNotFound if the system does not exist, ErrForbidden if it
// belongs to someone else, and a validation error if a reading is out of
// range. Nothing is written on failure.
func (s *Service) CreateMeasurement(ctx context.Context, p Principal, d MeasurementDraft) (*Measurement, error) {
	sys, err := s.targetSystem(ctx, p, d.System)
	if err != nil {
		return nil, err
	}
	if err := ValidateReadings(d.PH, d.Temperature, d.TDS); err != nil {
		return nil, err
	}

	m := &Measurement{
		SystemID:    sys.ID,
		OwnerID:     sys.OwnerID,
		PH:          d.PH,
		Temperature: d.Temperature,
		TDS:         d.TDS,
		Timestamp:   s.now().UTC(),
	}
	if err := s.store.CreateMeasurement(ctx, m); err != nil {
		return nil, err
	}
	s.audit(ctx, p, ActionCreate, "measurement", m.ID)
	s.notify(ctx, p, *m)
	return m, nil
}

// GetMeasurement returns a measurement under one of p's systems.
func (s *Service) GetMeasurement(ctx context.Context, p Principal, id int64) (*Measurement, error) {
	return s.store.FindMeasurement(ctx, p.UserID, id)
}

// ListMeasurements returns one page of measurements under p's systems.
func (s *Service) ListMeasurements(ctx context.Context, p Principal, f MeasurementFilter, order []OrderField, req PageRequest) (*Page[Measurement], error) {
	for _, o := range order {
		if _, ok := orderableColumns[o.Field]; !ok {
			return nil, badRequest("cannot order by %q", o.Field)
		}
	}
	req, err := s.limits.normalize(req)
	if err != nil {
		return nil, err
	}
	measurements, total, err := s.store.ListMeasurements(ctx, p.UserID, f, order, req.Size, req.offset())
	if err != nil {
		return nil, err
	}
	return newPage(req, total, measurements), nil
}

// ReplaceMeasurement overwrites the system reference and every reading.
// Omitted readings become null.
func (s *Service) ReplaceMeasurement(ctx context.Context, p Principal, id int64, d MeasurementDraft) (*Measurement, error) {
	m, err := s.resolveMeasurement(ctx, p, id)
	if err != nil {
		return nil, err
	}
	sys, err := s.targetSystem(ctx, p, d.System)
	if err != nil {
		return nil, err
	}
	if err := ValidateReadings(d.PH, d.Temperature, d.TDS); err != nil {
		return nil, err
	}
	m.SystemID = sys.ID
	m.PH, m.Temperature, m.TDS = d.PH, d.Temperature, d.TDS
	return s.saveMeasurement(ctx, p, m)
}

// PatchMeasurement changes only the supplied fields of a measurement.
func (s *Service) PatchMeasurement(ctx context.Context, p Principal, id int64, patch MeasurementPatch) (*Measurement, error) {
	m, err := s.resolveMeasurement(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if patch.System != nil {
		sys, err := s.targetSystem(ctx, p, patch.System)
		if err != nil {
			return nil, err
		}
		m.SystemID = sys.ID
	}
	ph := patch.PH.apply(m.PH)
	temperature := patch.Temperature.apply(m.Temperature)
	tds := patch.TDS.apply(m.TDS)
	if err := ValidateReadings(ph, temperature, tds); err != nil {
		return nil, err
	}
	m.PH, m.Temperature, m.TDS = ph, temperature, tds
	return s.saveMeasurement(ctx, p, m)
}

// DeleteMeasurement deletes a measurement under one of p's systems.
func (s *Service) DeleteMeasurement(ctx context.Context, p Principal, id int64) error {
	if _, err := s.resolveMeasurement(ctx, p, id); err != nil {
		return err
	}
	if err := s.store.DeleteMeasurement(ctx, p.UserID, id); err != nil {
		return err
	}
	s.audit(ctx, p, ActionDelete, "measurement", id)
	return nil
}

// LastMeasurements returns up to n of the newest measurements of p's system
// named systemName. A system owned by someone else is ErrNotFound.
func (s *Service) LastMeasurements(ctx context.Context, p Principal, systemName string, n int) ([]Measurement, error) {
	if n < 1 {
		return nil, badRequest("num_measurements must be a positive integer")
	}
	sys, err := s.store.FindSystemByName(ctx, p.UserID, systemName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: system not found or you do not have permission", ErrNotFound)
		}
		return nil, err
	}
	return s.store.LatestMeasurements(ctx, sys.ID, n)
}

func (s *Service) resolveMeasurement(ctx context.Context, p Principal, id int64) (*Measurement, error) {
	m, err := s.store.FindMeasurement(ctx, p.UserID, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(p, m.OwnerID); err != nil {
		return nil, err
	}
	return m, nil
}

// targetSystem resolves the system a measurement is written to. Unlike
// reads, a foreign system here is reported as ErrForbidden: the principal
// named it explicitly.
func (s *Service) targetSystem(ctx context.Context, p Principal, id *int64) (*System, error) {
	if id == nil {
		return nil, &FieldError{Field: "system", Message: "This field is required."}
	}
	sys, err := s.store.GetSystem(ctx, *id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: system %d does not exist", ErrNotFound, *id)
		}
		return nil, err
	}
	if err := Authorize(p, sys.OwnerID); err != nil {
		return nil, err
	}
	return sys, nil
}

func (s *Service) saveMeasurement(ctx context.Context, p Principal, m *Measurement) (*Measurement, error) {
	if err := s.store.UpdateMeasurement(ctx, m); err != nil {
		return nil, err
	}
	s.audit(ctx, p, ActionUpdate, "measurement", m.ID)
	return m, nil
}

func (s *Service) audit(ctx context.Context, p Principal, action, entityType string, id int64) {
	if s.auditor != nil {
		s.auditor.RecordMutation(ctx, p, action, entityType, id)
	}
}

func (s *Service) notify(ctx context.Context, p Principal, m Measurement) {
	for _, sink := range s.sinks {
		if err := sink.MeasurementRecorded(ctx, p, m); err != nil {
			s.logger.Warn("measurement sink failed",
				"system_id", m.SystemID,
				"measurement_id", m.ID,
				"error", err,
			)
		}
	}
}
