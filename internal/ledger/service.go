package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	_ "time/tzdata"

	"crane-fleet-backend/config"
	"crane-fleet-backend/internal/cycle"
	"crane-fleet-backend/internal/metrics"
	"crane-fleet-backend/internal/model"
	"crane-fleet-backend/internal/parse"
	"crane-fleet-backend/internal/store"
)

// Service reconciles maintenance records against the cycle rules and keeps
// the running-hours cache in step with the task logs.
type Service struct {
	store               store.Store
	labels              *parse.Labels
	locks               *keyedMutex
	truckLocks          *keyedMutex
	loc                 *time.Location
	defaultInitialHours int64
	now                 func() time.Time
}

// NewService creates a ledger service.
func NewService(st store.Store, labels *parse.Labels, cfg *config.MaintenanceConfig) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}
	initial := cfg.DefaultInitialHours
	if initial <= 0 {
		initial = model.DefaultInitialHours
	}
	return &Service{
		store:               st,
		labels:              labels,
		locks:               newKeyedMutex(),
		truckLocks:          newKeyedMutex(),
		loc:                 loc,
		defaultInitialHours: initial,
		now:                 time.Now,
	}, nil
}

// Labels returns the code/label table the service normalizes input with.
func (s *Service) Labels() *parse.Labels {
	return s.labels
}

// Location returns the timezone used for default record and task dates.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Status is the reconciliation of one cycle window. Hours is the running-hours
// total for the current status, or the record's maintenance_hours for a historical one.
type Status struct {
	CraneID              int64
	Hours                float64
	Cycle                cycle.Info
	DueParts             []cycle.Part
	ConsumablesHint      []cycle.Consumable
	AlreadyParts         []cycle.Part
	AlreadyConsumables   []cycle.Consumable
	AlreadyReplacedParts []cycle.Part
	PendingParts         []cycle.Part
	PendingConsumables   []cycle.Consumable
}

// RecordStatus pairs a record with the status of its own cycle window.
type RecordStatus struct {
	Record model.MaintenanceRecord
	Status Status
}

// Submission is a maintenance entry as entered by a user. Parts and
// Consumables may hold codes or display labels.
type Submission struct {
	CraneID          int64
	RecordID         int64 // set when editing; that record is left out of the duplicate scan
	MaintenanceHours int64
	Parts            []string
	Consumables      []string
	RecordDate       time.Time
	Note             string
}

// Decision is the normalized outcome of a validated submission.
type Decision struct {
	Cycle        cycle.Info
	Parts        []cycle.Part
	Consumables  []cycle.Consumable
	SkippedParts []cycle.Part
}

// Patch carries the fields of a record update. Nil fields keep the stored value.
type Patch struct {
	MaintenanceHours *int64
	Parts            []string
	Consumables      []string
	RecordDate       *time.Time
	Note             *string
}

// RecomputeTotalHours rebuilds the crane's running-hours cache from its task logs.
func (s *Service) RecomputeTotalHours(ctx context.Context, craneID int64) (model.RunningHours, error) {
	return s.recompute(ctx, s.store, craneID)
}

func (s *Service) recompute(ctx context.Context, st store.Store, craneID int64) (model.RunningHours, error) {
	crane, err := st.GetCrane(ctx, craneID)
	if err != nil {
		return model.RunningHours{}, err
	}
	sum, err := st.SumWorkTime(ctx, craneID)
	if err != nil {
		return model.RunningHours{}, err
	}

	rh := model.RunningHours{
		CraneID:        craneID,
		TotalHours:     float64(crane.InitialHours) + sum,
		RecalculatedAt: s.now(),
	}
	if err := st.UpsertRunningHours(ctx, &rh); err != nil {
		return model.RunningHours{}, err
	}
	metrics.RunningHoursRecomputes.Inc()
	return rh, nil
}

// DueAndPendingNow reports the crane's current cycle and what is still open in it.
func (s *Service) DueAndPendingNow(ctx context.Context, craneID int64) (Status, error) {
	rh, err := s.RecomputeTotalHours(ctx, craneID)
	if err != nil {
		return Status{}, err
	}
	info, err := cycle.FromRunningHours(rh.TotalHours)
	if err != nil {
		return Status{}, err
	}
	records, err := s.store.ListRecordsInRange(ctx, craneID, info.Start, info.End, 0)
	if err != nil {
		return Status{}, err
	}

	st, err := reconcile(info, records)
	if err != nil {
		return Status{}, err
	}
	st.CraneID = craneID
	st.Hours = rh.TotalHours
	return st, nil
}

// DueAndPendingForRecord reconstructs the status of the window the record was logged in.
func (s *Service) DueAndPendingForRecord(ctx context.Context, recordID int64) (Status, error) {
	record, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return Status{}, err
	}
	info, err := cycle.Of(record.MaintenanceHours)
	if err != nil {
		return Status{}, err
	}
	records, err := s.store.ListRecordsInRange(ctx, record.CraneID, info.Start, info.End, 0)
	if err != nil {
		return Status{}, err
	}

	st, err := reconcile(info, records)
	if err != nil {
		return Status{}, err
	}
	st.CraneID = record.CraneID
	st.Hours = float64(record.MaintenanceHours)
	return st, nil
}

// History returns every record of the crane, newest first, each with the
// status of its own window.
func (s *Service) History(ctx context.Context, craneID int64) ([]RecordStatus, error) {
	if _, err := s.store.GetCrane(ctx, craneID); err != nil {
		return nil, err
	}
	records, err := s.store.ListRecordsByCrane(ctx, craneID)
	if err != nil {
		return nil, err
	}

	windows := make(map[int64][]model.MaintenanceRecord)
	infos := make([]cycle.Info, len(records))
	for i, r := range records {
		info, err := cycle.Of(r.MaintenanceHours)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		infos[i] = info
		windows[info.Start] = append(windows[info.Start], r)
	}

	out := make([]RecordStatus, 0, len(records))
	for i, r := range records {
		st, err := reconcile(infos[i], windows[infos[i].Start])
		if err != nil {
			return nil, err
		}
		st.CraneID = craneID
		st.Hours = float64(r.MaintenanceHours)
		out = append(out, RecordStatus{Record: r, Status: st})
	}
	return out, nil
}

// reconcile folds the records of one window into the due/already/pending sets.
func reconcile(info cycle.Info, records []model.MaintenanceRecord) (Status, error) {
	due, err := cycle.DueParts(info.Index)
	if err != nil {
		return Status{}, err
	}
	hint := cycle.ConsumablesHint(due)

	doneParts := make(map[cycle.Part]bool)
	doneCons := make(map[cycle.Consumable]bool)
	for _, r := range records {
		for _, p := range r.Parts {
			if cycle.IsPart(p) {
				doneParts[cycle.Part(p)] = true
			}
		}
		for _, c := range r.Consumables {
			if cycle.IsConsumable(c) {
				doneCons[cycle.Consumable(c)] = true
			}
		}
	}

	dueSet := make(map[cycle.Part]bool, len(due))
	for _, p := range due {
		dueSet[p] = true
	}

	var replaced, pending []cycle.Part
	for _, p := range due {
		if doneParts[p] {
			replaced = append(replaced, p)
			for _, c := range cycle.ImpliedConsumables(p) {
				doneCons[c] = true
			}
		} else {
			pending = append(pending, p)
		}
	}

	var pendingCons []cycle.Consumable
	for _, c := range hint {
		if !doneCons[c] {
			pendingCons = append(pendingCons, c)
		}
	}

	return Status{
		Cycle:                info,
		DueParts:             due,
		ConsumablesHint:      hint,
		AlreadyParts:         cycle.SortParts(doneParts),
		AlreadyConsumables:   cycle.SortConsumables(doneCons),
		AlreadyReplacedParts: orEmpty(replaced),
		PendingParts:         orEmpty(pending),
		PendingConsumables:   orEmptyCons(pendingCons),
	}, nil
}

// Validate checks a submission against the records of its cycle window without writing anything.
func (s *Service) Validate(ctx context.Context, sub Submission) (Decision, error) {
	if _, err := s.store.GetCrane(ctx, sub.CraneID); err != nil {
		return Decision{}, err
	}
	var existing *model.MaintenanceRecord
	if sub.RecordID > 0 {
		r, err := s.store.GetRecord(ctx, sub.RecordID)
		if err != nil {
			return Decision{}, err
		}
		existing = &r
	}
	return s.validate(ctx, s.store, sub, existing)
}

func (s *Service) validate(ctx context.Context, st store.Store, sub Submission, existing *model.MaintenanceRecord) (Decision, error) {
	parts, cons, err := s.labels.Normalize(sub.Parts, sub.Consumables)
	if err != nil {
		return Decision{}, err
	}

	info, err := cycle.Of(sub.MaintenanceHours)
	if err != nil {
		return Decision{}, err
	}

	records, err := st.ListRecordsInRange(ctx, sub.CraneID, info.Start, info.End, sub.RecordID)
	if err != nil {
		return Decision{}, err
	}
	replaced := make(map[cycle.Part]bool)
	for _, r := range records {
		for _, p := range r.Parts {
			replaced[cycle.Part(p)] = true
		}
	}

	var fresh, skipped []cycle.Part
	for _, p := range parts {
		if replaced[p] {
			skipped = append(skipped, p)
		} else {
			fresh = append(fresh, p)
		}
	}
	if len(parts) > 0 && len(fresh) == 0 {
		return Decision{}, &DuplicateInCycleError{Skipped: skipped, CycleIndex: info.Index}
	}

	if len(cons) == 0 {
		base := fresh
		if len(base) == 0 {
			base = parts
		}
		want := make(map[cycle.Consumable]bool)
		for _, c := range cycle.ConsumablesHint(base) {
			want[c] = true
		}
		if existing != nil {
			for _, c := range existing.Consumables {
				if cycle.IsConsumable(c) {
					want[cycle.Consumable(c)] = true
				}
			}
		}
		cons = cycle.SortConsumables(want)
	}

	return Decision{
		Cycle:        info,
		Parts:        orEmpty(fresh),
		Consumables:  orEmptyCons(cons),
		SkippedParts: orEmpty(skipped),
	}, nil
}

// Submit validates a new maintenance entry and stores it while holding the crane's lock.
func (s *Service) Submit(ctx context.Context, sub Submission) (Decision, model.MaintenanceRecord, error) {
	sub.RecordID = 0
	unlock := s.locks.Lock(sub.CraneID)
	defer unlock()

	var (
		dec    Decision
		record model.MaintenanceRecord
	)
	err := s.store.WithCraneLock(ctx, sub.CraneID, func(tx store.Store) error {
		if _, err := tx.GetCrane(ctx, sub.CraneID); err != nil {
			return err
		}
		d, err := s.validate(ctx, tx, sub, nil)
		if err != nil {
			return err
		}

		record = model.MaintenanceRecord{
			CraneID:          sub.CraneID,
			RecordDate:       s.dateOrToday(sub.RecordDate),
			MaintenanceHours: sub.MaintenanceHours,
			Parts:            partCodes(d.Parts),
			Consumables:      consumableCodes(d.Consumables),
			Note:             sub.Note,
		}
		if err := tx.CreateRecord(ctx, &record); err != nil {
			return err
		}
		dec = d
		return nil
	})
	observe("submit", dec, err)
	if err != nil {
		return Decision{}, model.MaintenanceRecord{}, err
	}

	log.Printf("Crane %d: recorded maintenance %d at %dh (cycle %d), parts=%v skipped=%v",
		sub.CraneID, record.ID, record.MaintenanceHours, dec.Cycle.Index, record.Parts, dec.SkippedParts)
	return dec, record, nil
}

// Update applies a patch to a record, re-validating it against the rest of its window.
func (s *Service) Update(ctx context.Context, recordID int64, patch Patch) (Decision, model.MaintenanceRecord, error) {
	current, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return Decision{}, model.MaintenanceRecord{}, err
	}
	unlock := s.locks.Lock(current.CraneID)
	defer unlock()

	var (
		dec    Decision
		record model.MaintenanceRecord
	)
	err = s.store.WithCraneLock(ctx, current.CraneID, func(tx store.Store) error {
		stored, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}

		sub := Submission{
			CraneID:          stored.CraneID,
			RecordID:         stored.ID,
			MaintenanceHours: stored.MaintenanceHours,
			Parts:            stored.Parts,
			Consumables:      patch.Consumables,
			RecordDate:       stored.RecordDate,
			Note:             stored.Note,
		}
		if patch.MaintenanceHours != nil {
			sub.MaintenanceHours = *patch.MaintenanceHours
		}
		if patch.Parts != nil {
			sub.Parts = patch.Parts
		}
		if patch.RecordDate != nil {
			sub.RecordDate = *patch.RecordDate
		}
		if patch.Note != nil {
			sub.Note = *patch.Note
		}

		d, err := s.validate(ctx, tx, sub, &stored)
		if err != nil {
			return err
		}

		stored.MaintenanceHours = sub.MaintenanceHours
		stored.RecordDate = s.dateOrToday(sub.RecordDate)
		stored.Note = sub.Note
		stored.Parts = partCodes(d.Parts)
		stored.Consumables = consumableCodes(d.Consumables)
		if err := tx.SaveRecord(ctx, &stored); err != nil {
			return err
		}
		record = stored
		dec = d
		return nil
	})
	observe("update", dec, err)
	if err != nil {
		return Decision{}, model.MaintenanceRecord{}, err
	}

	log.Printf("Crane %d: updated maintenance %d at %dh (cycle %d), parts=%v",
		record.CraneID, record.ID, record.MaintenanceHours, dec.Cycle.Index, record.Parts)
	return dec, record, nil
}

// Delete removes a record; it no longer counts toward its window.
func (s *Service) Delete(ctx context.Context, recordID int64) error {
	if err := s.store.DeleteRecord(ctx, recordID); err != nil {
		return err
	}
	log.Printf("Deleted maintenance record %d", recordID)
	return nil
}

func (s *Service) dateOrToday(t time.Time) time.Time {
	if t.IsZero() {
		t = s.now().In(s.loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func observe(op string, dec Decision, err error) {
	var (
		dup     *DuplicateInCycleError
		unknown *parse.UnknownCodeError
	)
	outcome := metrics.OutcomeAccepted
	switch {
	case errors.As(err, &dup):
		outcome = metrics.OutcomeDuplicate
	case errors.As(err, &unknown):
		outcome = metrics.OutcomeUnknownCode
	case errors.Is(err, ErrInvalidInput):
		outcome = metrics.OutcomeInvalid
	case err != nil:
		return
	case len(dec.SkippedParts) > 0:
		outcome = metrics.OutcomePartial
	}
	metrics.LedgerDecisions.WithLabelValues(op, outcome).Inc()
}

func partCodes(parts []cycle.Part) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}

func consumableCodes(cons []cycle.Consumable) []string {
	out := make([]string, len(cons))
	for i, c := range cons {
		out[i] = string(c)
	}
	return out
}

func orEmpty(parts []cycle.Part) []cycle.Part {
	if parts == nil {
		return []cycle.Part{}
	}
	return parts
}

func orEmptyCons(cons []cycle.Consumable) []cycle.Consumable {
	if cons == nil {
		return []cycle.Consumable{}
	}
	return cons
}
