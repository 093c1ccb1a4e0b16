package store

import (
	"context"
	"fmt"
	"time"

	"crane-fleet-backend/internal/model"
)

// DrumTotals are the live IN and OUT litres of one truck's drum.
type DrumTotals struct {
	In  float64 `gorm:"column:in_litres"`
	Out float64 `gorm:"column:out_litres"`
}

// --- Trucks ---

func (s *gormStore) CreateTruck(ctx context.Context, truck *model.Truck) error {
	if err := s.db.WithContext(ctx).Create(truck).Error; err != nil {
		return writeErr(err, "failed to create truck %q", truck.Number)
	}
	return nil
}

func (s *gormStore) GetTruck(ctx context.Context, id int64) (model.Truck, error) {
	var truck model.Truck
	if err := s.db.WithContext(ctx).First(&truck, id).Error; err != nil {
		return model.Truck{}, notFound(err, "truck", id)
	}
	return truck, nil
}

func (s *gormStore) ListTrucks(ctx context.Context) ([]model.Truck, error) {
	var trucks []model.Truck
	if err := s.db.WithContext(ctx).Order("truck_number").Find(&trucks).Error; err != nil {
		return nil, fmt.Errorf("failed to list trucks: %w", err)
	}
	return trucks, nil
}

// --- Oil drum records ---

func (s *gormStore) CreateDrumRecord(ctx context.Context, record *model.OilDrumRecord) error {
	if err := s.db.WithContext(ctx).Omit("Truck", "Crane").Create(record).Error; err != nil {
		return fmt.Errorf("failed to create drum record for truck %d: %w", record.TruckID, err)
	}
	return nil
}

// GetDrumRecord returns a live drum record with its crane loaded.
func (s *gormStore) GetDrumRecord(ctx context.Context, id int64) (model.OilDrumRecord, error) {
	var record model.OilDrumRecord
	if err := s.db.WithContext(ctx).Preload("Crane").First(&record, id).Error; err != nil {
		return model.OilDrumRecord{}, notFound(err, "drum record", id)
	}
	return record, nil
}

func (s *gormStore) SaveDrumRecord(ctx context.Context, record *model.OilDrumRecord) error {
	if err := s.db.WithContext(ctx).Omit("Truck", "Crane").Save(record).Error; err != nil {
		return fmt.Errorf("failed to save drum record %d: %w", record.ID, err)
	}
	return nil
}

// DeleteDrumRecord soft-deletes a drum record so it drops out of the drum balance.
func (s *gormStore) DeleteDrumRecord(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.OilDrumRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete drum record %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("drum record %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListDrumRecords returns the truck's live drum records, newest first.
func (s *gormStore) ListDrumRecords(ctx context.Context, truckID int64) ([]model.OilDrumRecord, error) {
	var records []model.OilDrumRecord
	err := s.db.WithContext(ctx).
		Preload("Crane").
		Where("truck_id = ?", truckID).
		Order("record_date DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list drum records for truck %d: %w", truckID, err)
	}
	return records, nil
}

// ListDrumRecordsBetweenDates returns live drum records dated within [from, to],
// with their truck and crane loaded.
func (s *gormStore) ListDrumRecordsBetweenDates(ctx context.Context, from, to time.Time) ([]model.OilDrumRecord, error) {
	var records []model.OilDrumRecord
	err := s.db.WithContext(ctx).
		Preload("Truck").
		Preload("Crane").
		Where("record_date >= ? AND record_date <= ?", from, to).
		Order("record_date, truck_id, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list drum records between %s and %s: %w", from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	return records, nil
}

// DrumTotals sums the truck's live drum movements. A positive excludeID leaves
// that record out, so an edit can be checked against the rest of the ledger.
func (s *gormStore) DrumTotals(ctx context.Context, truckID, excludeID int64) (DrumTotals, error) {
	q := s.db.WithContext(ctx).
		Model(&model.OilDrumRecord{}).
		Select("COALESCE(SUM(CASE WHEN io_type = ? THEN quantity ELSE 0 END), 0) AS in_litres, "+
			"COALESCE(SUM(CASE WHEN io_type = ? THEN quantity ELSE 0 END), 0) AS out_litres", model.DrumIn, model.DrumOut).
		Where("truck_id = ?", truckID)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var totals DrumTotals
	if err := q.Scan(&totals).Error; err != nil {
		return DrumTotals{}, fmt.Errorf("failed to total drum records for truck %d: %w", truckID, err)
	}
	return totals, nil
}

// --- Truck fuel records ---

func (s *gormStore) CreateFuelRecord(ctx context.Context, record *model.TruckFuelRecord) error {
	if err := s.db.WithContext(ctx).Omit("Truck").Create(record).Error; err != nil {
		return fmt.Errorf("failed to create fuel record for truck %d: %w", record.TruckID, err)
	}
	return nil
}

func (s *gormStore) GetFuelRecord(ctx context.Context, id int64) (model.TruckFuelRecord, error) {
	var record model.TruckFuelRecord
	if err := s.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return model.TruckFuelRecord{}, notFound(err, "fuel record", id)
	}
	return record, nil
}

func (s *gormStore) SaveFuelRecord(ctx context.Context, record *model.TruckFuelRecord) error {
	if err := s.db.WithContext(ctx).Omit("Truck").Save(record).Error; err != nil {
		return fmt.Errorf("failed to save fuel record %d: %w", record.ID, err)
	}
	return nil
}

func (s *gormStore) DeleteFuelRecord(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.TruckFuelRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete fuel record %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("fuel record %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListFuelRecords returns the truck's live refuellings, newest first.
func (s *gormStore) ListFuelRecords(ctx context.Context, truckID int64) ([]model.TruckFuelRecord, error) {
	var records []model.TruckFuelRecord
	err := s.db.WithContext(ctx).
		Where("truck_id = ?", truckID).
		Order("record_date DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list fuel records for truck %d: %w", truckID, err)
	}
	return records, nil
}

// ListFuelRecordsBetweenDates returns live refuellings dated within [from, to],
// with their truck loaded.
func (s *gormStore) ListFuelRecordsBetweenDates(ctx context.Context, from, to time.Time) ([]model.TruckFuelRecord, error) {
	var records []model.TruckFuelRecord
	err := s.db.WithContext(ctx).
		Preload("Truck").
		Where("record_date >= ? AND record_date <= ?", from, to).
		Order("record_date, truck_id, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list fuel records between %s and %s: %w", from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	return records, nil
}

// SumFuel totals the litres put into the truck's tank.
func (s *gormStore) SumFuel(ctx context.Context, truckID int64) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).
		Model(&model.TruckFuelRecord{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("truck_id = ?", truckID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum fuel for truck %d: %w", truckID, err)
	}
	return total, nil
}
