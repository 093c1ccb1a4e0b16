package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crane-fleet-backend/internal/model"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write hits a unique index.
	ErrConflict = errors.New("conflict")
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateCrane(ctx context.Context, crane *model.Crane) error
	GetCrane(ctx context.Context, id int64) (model.Crane, error)
	FindCraneByNumber(ctx context.Context, number string) (model.Crane, bool, error)
	ListCranes(ctx context.Context) ([]model.Crane, error)
	UpdateCrane(ctx context.Context, crane *model.Crane) error

	CreateTask(ctx context.Context, task *model.DailyTask) error
	GetTask(ctx context.Context, id int64) (model.DailyTask, error)
	ListTasks(ctx context.Context, craneID int64) ([]model.DailyTask, error)
	ListTasksBetweenDates(ctx context.Context, from, to time.Time) ([]model.DailyTask, error)
	UpdateTask(ctx context.Context, task *model.DailyTask) error
	DeleteTask(ctx context.Context, id int64) error
	SumWorkTime(ctx context.Context, craneID int64) (float64, error)
	UpsertRunningHours(ctx context.Context, rh *model.RunningHours) error

	CreateRecord(ctx context.Context, record *model.MaintenanceRecord) error
	GetRecord(ctx context.Context, id int64) (model.MaintenanceRecord, error)
	SaveRecord(ctx context.Context, record *model.MaintenanceRecord) error
	DeleteRecord(ctx context.Context, id int64) error
	ListRecordsInRange(ctx context.Context, craneID, start, end, excludeID int64) ([]model.MaintenanceRecord, error)
	ListRecordsByCrane(ctx context.Context, craneID int64) ([]model.MaintenanceRecord, error)
	ListRecordsBetweenDates(ctx context.Context, from, to time.Time) ([]model.MaintenanceRecord, error)

	CreateTruck(ctx context.Context, truck *model.Truck) error
	GetTruck(ctx context.Context, id int64) (model.Truck, error)
	ListTrucks(ctx context.Context) ([]model.Truck, error)

	CreateDrumRecord(ctx context.Context, record *model.OilDrumRecord) error
	GetDrumRecord(ctx context.Context, id int64) (model.OilDrumRecord, error)
	SaveDrumRecord(ctx context.Context, record *model.OilDrumRecord) error
	DeleteDrumRecord(ctx context.Context, id int64) error
	ListDrumRecords(ctx context.Context, truckID int64) ([]model.OilDrumRecord, error)
	ListDrumRecordsBetweenDates(ctx context.Context, from, to time.Time) ([]model.OilDrumRecord, error)
	DrumTotals(ctx context.Context, truckID, excludeID int64) (DrumTotals, error)

	CreateFuelRecord(ctx context.Context, record *model.TruckFuelRecord) error
	GetFuelRecord(ctx context.Context, id int64) (model.TruckFuelRecord, error)
	SaveFuelRecord(ctx context.Context, record *model.TruckFuelRecord) error
	DeleteFuelRecord(ctx context.Context, id int64) error
	ListFuelRecords(ctx context.Context, truckID int64) ([]model.TruckFuelRecord, error)
	ListFuelRecordsBetweenDates(ctx context.Context, from, to time.Time) ([]model.TruckFuelRecord, error)
	SumFuel(ctx context.Context, truckID int64) (float64, error)

	// WithCraneLock runs fn in a transaction that holds the crane's write lock.
	WithCraneLock(ctx context.Context, craneID int64, fn func(tx Store) error) error
	// WithTruckLock runs fn in a transaction that holds the truck's drum lock.
	WithTruckLock(ctx context.Context, truckID int64, fn func(tx Store) error) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// WithCraneLock serializes writers of one crane. On PostgreSQL a transaction-scoped
// advisory lock keyed by the crane ID also serializes writers in other processes.
func (s *gormStore) WithCraneLock(ctx context.Context, craneID int64, fn func(tx Store) error) error {
	return s.locked(ctx, fn, "SELECT pg_advisory_xact_lock(?)", craneID)
}

// WithTruckLock serializes drum writers of one truck. It uses the two-key
// advisory lock form, whose key space is separate from the crane locks.
func (s *gormStore) WithTruckLock(ctx context.Context, truckID int64, fn func(tx Store) error) error {
	return s.locked(ctx, fn, "SELECT pg_advisory_xact_lock(?, ?)", truckLockSpace, int32(truckID))
}

const truckLockSpace = 2

func (s *gormStore) locked(ctx context.Context, fn func(tx Store) error, lockSQL string, args ...interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(lockSQL, args...).Error; err != nil {
				return fmt.Errorf("failed to take lock %v: %w", args, err)
			}
		}
		return fn(&gormStore{db: tx})
	})
}

// writeErr wraps a failed write, surfacing unique-index violations as ErrConflict.
// It relies on the connection being opened with TranslateError.
func writeErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", msg, ErrConflict)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", what, id, err)
}

// --- Cranes ---

func (s *gormStore) CreateCrane(ctx context.Context, crane *model.Crane) error {
	if err := s.db.WithContext(ctx).Create(crane).Error; err != nil {
		return writeErr(err, "failed to create crane %q", crane.Number)
	}
	return nil
}

func (s *gormStore) GetCrane(ctx context.Context, id int64) (model.Crane, error) {
	var crane model.Crane
	if err := s.db.WithContext(ctx).First(&crane, id).Error; err != nil {
		return model.Crane{}, notFound(err, "crane", id)
	}
	return crane, nil
}

func (s *gormStore) FindCraneByNumber(ctx context.Context, number string) (model.Crane, bool, error) {
	var cranes []model.Crane
	if err := s.db.WithContext(ctx).Where("crane_number = ?", number).Limit(1).Find(&cranes).Error; err != nil {
		return model.Crane{}, false, fmt.Errorf("failed to look up crane %q: %w", number, err)
	}
	if len(cranes) == 0 {
		return model.Crane{}, false, nil
	}
	return cranes[0], true, nil
}

func (s *gormStore) ListCranes(ctx context.Context) ([]model.Crane, error) {
	var cranes []model.Crane
	if err := s.db.WithContext(ctx).Order("crane_number").Find(&cranes).Error; err != nil {
		return nil, fmt.Errorf("failed to list cranes: %w", err)
	}
	return cranes, nil
}

func (s *gormStore) UpdateCrane(ctx context.Context, crane *model.Crane) error {
	if err := s.db.WithContext(ctx).Model(crane).Select("crane_number", "crane_type", "initial_hours").Updates(crane).Error; err != nil {
		return writeErr(err, "failed to update crane %d", crane.ID)
	}
	return nil
}

// --- Task logs and running hours ---

func (s *gormStore) CreateTask(ctx context.Context, task *model.DailyTask) error {
	if err := s.db.WithContext(ctx).Omit("Crane").Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task for crane %d: %w", task.CraneID, err)
	}
	return nil
}

// GetTask returns a live task log with its crane loaded.
func (s *gormStore) GetTask(ctx context.Context, id int64) (model.DailyTask, error) {
	var task model.DailyTask
	if err := s.db.WithContext(ctx).Preload("Crane").First(&task, id).Error; err != nil {
		return model.DailyTask{}, notFound(err, "task", id)
	}
	return task, nil
}

// ListTasks returns live task logs, newest first. A positive craneID limits
// the list to that crane.
func (s *gormStore) ListTasks(ctx context.Context, craneID int64) ([]model.DailyTask, error) {
	q := s.db.WithContext(ctx).Preload("Crane")
	if craneID > 0 {
		q = q.Where("crane_id = ?", craneID)
	}

	var tasks []model.DailyTask
	if err := q.Order("task_date DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// ListTasksBetweenDates returns live task logs dated within [from, to], oldest first.
func (s *gormStore) ListTasksBetweenDates(ctx context.Context, from, to time.Time) ([]model.DailyTask, error) {
	var tasks []model.DailyTask
	err := s.db.WithContext(ctx).
		Preload("Crane").
		Where("task_date >= ? AND task_date <= ?", from, to).
		Order("task_date, id").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks between %s and %s: %w", from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	return tasks, nil
}

func (s *gormStore) UpdateTask(ctx context.Context, task *model.DailyTask) error {
	if err := s.db.WithContext(ctx).Omit("Crane").Save(task).Error; err != nil {
		return fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}
	return nil
}

// DeleteTask soft-deletes a task log so it drops out of the running-hours sum.
func (s *gormStore) DeleteTask(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.DailyTask{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// SumWorkTime totals work_time over the crane's live task logs.
func (s *gormStore) SumWorkTime(ctx context.Context, craneID int64) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).
		Model(&model.DailyTask{}).
		Select("COALESCE(SUM(work_time), 0)").
		Where("crane_id = ?", craneID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum work time for crane %d: %w", craneID, err)
	}
	return total, nil
}

func (s *gormStore) UpsertRunningHours(ctx context.Context, rh *model.RunningHours) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "crane_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_hours", "recalculated_at"}),
	}).Create(rh).Error
	if err != nil {
		return fmt.Errorf("failed to write running hours for crane %d: %w", rh.CraneID, err)
	}
	return nil
}

// --- Maintenance records ---

func (s *gormStore) CreateRecord(ctx context.Context, record *model.MaintenanceRecord) error {
	if err := s.db.WithContext(ctx).Omit("Crane").Create(record).Error; err != nil {
		return fmt.Errorf("failed to create maintenance record for crane %d: %w", record.CraneID, err)
	}
	return nil
}

func (s *gormStore) GetRecord(ctx context.Context, id int64) (model.MaintenanceRecord, error) {
	var record model.MaintenanceRecord
	if err := s.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return model.MaintenanceRecord{}, notFound(err, "maintenance record", id)
	}
	return record, nil
}

func (s *gormStore) SaveRecord(ctx context.Context, record *model.MaintenanceRecord) error {
	if err := s.db.WithContext(ctx).Omit("Crane").Save(record).Error; err != nil {
		return fmt.Errorf("failed to save maintenance record %d: %w", record.ID, err)
	}
	return nil
}

func (s *gormStore) DeleteRecord(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.MaintenanceRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete maintenance record %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("maintenance record %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListRecordsInRange returns the crane's records with start <= maintenance_hours < end.
// A positive excludeID leaves that record out.
func (s *gormStore) ListRecordsInRange(ctx context.Context, craneID, start, end, excludeID int64) ([]model.MaintenanceRecord, error) {
	q := s.db.WithContext(ctx).
		Where("crane_id = ? AND maintenance_hours >= ? AND maintenance_hours < ?", craneID, start, end)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var records []model.MaintenanceRecord
	if err := q.Order("maintenance_hours, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list records for crane %d in [%d, %d): %w", craneID, start, end, err)
	}
	return records, nil
}

// ListRecordsByCrane returns every record of the crane, newest first.
func (s *gormStore) ListRecordsByCrane(ctx context.Context, craneID int64) ([]model.MaintenanceRecord, error) {
	var records []model.MaintenanceRecord
	err := s.db.WithContext(ctx).
		Where("crane_id = ?", craneID).
		Order("record_date DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records for crane %d: %w", craneID, err)
	}
	return records, nil
}

// ListRecordsBetweenDates returns records dated within [from, to], with their crane loaded.
func (s *gormStore) ListRecordsBetweenDates(ctx context.Context, from, to time.Time) ([]model.MaintenanceRecord, error) {
	var records []model.MaintenanceRecord
	err := s.db.WithContext(ctx).
		Preload("Crane").
		Where("record_date >= ? AND record_date <= ?", from, to).
		Order("crane_id, maintenance_hours, record_date, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records between %s and %s: %w", from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	return records, nil
}
