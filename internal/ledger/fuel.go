package ledger

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"crane-fleet-backend/internal/metrics"
	"crane-fleet-backend/internal/model"
	"crane-fleet-backend/internal/store"
)

// TruckInput is the payload of a truck registration.
type TruckInput struct {
	Number    string
	Latitude  *float64
	Longitude *float64
}

// TruckSummary is a truck with its drum and tank balances in litres.
type TruckSummary struct {
	Truck      model.Truck
	DrumRemain float64
	FuelRemain float64
}

// DrumInput is a new drum movement. IN carries a unit price and no crane,
// OUT names the receiving crane and carries no price.
type DrumInput struct {
	IOType     model.DrumIO
	Quantity   *float64
	UnitPrice  *float64
	CraneID    *int64
	RecordDate time.Time
}

// DrumPatch carries the fields of a drum record update. Nil fields keep the
// stored value. Switching direction clears the price and crane of the old one.
type DrumPatch struct {
	IOType     *model.DrumIO
	Quantity   *float64
	UnitPrice  *float64
	CraneID    *int64
	RecordDate *time.Time
}

// FuelInput is a new refuelling of a truck's tank.
type FuelInput struct {
	Quantity   *float64
	UnitPrice  *float64
	RecordDate time.Time
}

// FuelPatch carries the fields of a refuelling update. Nil fields keep the stored value.
type FuelPatch struct {
	Quantity   *float64
	UnitPrice  *float64
	RecordDate *time.Time
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func checkLitres(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidInput, field)
	}
	return nil
}

// CreateTruck registers a truck.
func (s *Service) CreateTruck(ctx context.Context, in TruckInput) (TruckSummary, error) {
	in.Number = strings.TrimSpace(in.Number)
	if in.Number == "" {
		return TruckSummary{}, fmt.Errorf("%w: truck number is required", ErrInvalidInput)
	}
	if in.Latitude != nil && (math.IsNaN(*in.Latitude) || math.Abs(*in.Latitude) > 90) {
		return TruckSummary{}, fmt.Errorf("%w: latitude %v", ErrInvalidInput, *in.Latitude)
	}
	if in.Longitude != nil && (math.IsNaN(*in.Longitude) || math.Abs(*in.Longitude) > 180) {
		return TruckSummary{}, fmt.Errorf("%w: longitude %v", ErrInvalidInput, *in.Longitude)
	}

	truck := model.Truck{Number: in.Number, Latitude: in.Latitude, Longitude: in.Longitude}
	if err := s.store.CreateTruck(ctx, &truck); err != nil {
		return TruckSummary{}, err
	}
	log.Printf("Registered truck %d (%s)", truck.ID, truck.Number)
	return TruckSummary{Truck: truck}, nil
}

// GetTruck returns one truck with its balances.
func (s *Service) GetTruck(ctx context.Context, truckID int64) (TruckSummary, error) {
	truck, err := s.store.GetTruck(ctx, truckID)
	if err != nil {
		return TruckSummary{}, err
	}
	return s.truckSummary(ctx, truck)
}

// ListTrucks returns every truck with its balances, ordered by number.
func (s *Service) ListTrucks(ctx context.Context) ([]TruckSummary, error) {
	trucks, err := s.store.ListTrucks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TruckSummary, 0, len(trucks))
	for _, t := range trucks {
		sum, err := s.truckSummary(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) truckSummary(ctx context.Context, truck model.Truck) (TruckSummary, error) {
	totals, err := s.store.DrumTotals(ctx, truck.ID, 0)
	if err != nil {
		return TruckSummary{}, err
	}
	fuel, err := s.store.SumFuel(ctx, truck.ID)
	if err != nil {
		return TruckSummary{}, err
	}
	return TruckSummary{
		Truck:      truck,
		DrumRemain: round2(totals.In - totals.Out),
		FuelRemain: round2(fuel),
	}, nil
}

// checkDrum enforces the per-direction shape of a drum record.
func checkDrum(r *model.OilDrumRecord) error {
	if err := checkLitres("quantity", r.Quantity); err != nil {
		return err
	}
	switch r.IOType {
	case model.DrumIn:
		if r.UnitPrice == nil {
			return fmt.Errorf("%w: a drum refill needs a unit price", ErrInvalidInput)
		}
		if err := checkLitres("unit_price", *r.UnitPrice); err != nil {
			return err
		}
		if r.CraneID != nil {
			return fmt.Errorf("%w: a drum refill cannot name a crane", ErrInvalidInput)
		}
	case model.DrumOut:
		if r.UnitPrice != nil {
			return fmt.Errorf("%w: a drum dispense cannot carry a unit price", ErrInvalidInput)
		}
		if r.CraneID == nil {
			return fmt.Errorf("%w: a drum dispense must name the crane", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: io_type %q, expected IN or OUT", ErrInvalidInput, r.IOType)
	}
	return nil
}

// checkBalance rejects a drum ledger whose dispensed litres exceed its refills
// once r is applied. totals must exclude r itself.
func checkBalance(totals store.DrumTotals, r *model.OilDrumRecord) error {
	in, out := totals.In, totals.Out
	if r != nil {
		if r.IOType == model.DrumIn {
			in += r.Quantity
		} else {
			out += r.Quantity
		}
	}
	if round2(out) > round2(in) {
		return fmt.Errorf("%w: %.2fL out against %.2fL in", ErrInsufficientOil, out, in)
	}
	return nil
}

// AddDrumRecord stores a drum refill or dispense while holding the truck's lock.
func (s *Service) AddDrumRecord(ctx context.Context, truckID int64, in DrumInput) (model.OilDrumRecord, error) {
	if in.Quantity == nil {
		return model.OilDrumRecord{}, fmt.Errorf("%w: quantity is required", ErrInvalidInput)
	}
	record := model.OilDrumRecord{
		TruckID:    truckID,
		CraneID:    in.CraneID,
		RecordDate: s.dateOrToday(in.RecordDate),
		IOType:     model.DrumIO(strings.ToUpper(string(in.IOType))),
		Quantity:   *in.Quantity,
		UnitPrice:  in.UnitPrice,
	}
	if err := checkDrum(&record); err != nil {
		return model.OilDrumRecord{}, err
	}

	unlock := s.truckLocks.Lock(truckID)
	defer unlock()

	err := s.store.WithTruckLock(ctx, truckID, func(tx store.Store) error {
		if _, err := tx.GetTruck(ctx, truckID); err != nil {
			return err
		}
		if record.CraneID != nil {
			crane, err := tx.GetCrane(ctx, *record.CraneID)
			if err != nil {
				return err
			}
			record.Crane = &crane
		}
		totals, err := tx.DrumTotals(ctx, truckID, 0)
		if err != nil {
			return err
		}
		if err := checkBalance(totals, &record); err != nil {
			return err
		}
		return tx.CreateDrumRecord(ctx, &record)
	})
	if err != nil {
		return model.OilDrumRecord{}, err
	}

	metrics.FuelLitres.WithLabelValues("drum_" + strings.ToLower(string(record.IOType))).Add(record.Quantity)
	log.Printf("Truck %d: drum %s %.2fL (record %d)", truckID, record.IOType, record.Quantity, record.ID)
	return record, nil
}

// UpdateDrumRecord merges a patch into a drum record and re-checks the balance
// against the truck's other records.
func (s *Service) UpdateDrumRecord(ctx context.Context, recordID int64, patch DrumPatch) (model.OilDrumRecord, error) {
	current, err := s.store.GetDrumRecord(ctx, recordID)
	if err != nil {
		return model.OilDrumRecord{}, err
	}
	unlock := s.truckLocks.Lock(current.TruckID)
	defer unlock()

	var record model.OilDrumRecord
	err = s.store.WithTruckLock(ctx, current.TruckID, func(tx store.Store) error {
		next, err := tx.GetDrumRecord(ctx, recordID)
		if err != nil {
			return err
		}

		if patch.IOType != nil {
			io := model.DrumIO(strings.ToUpper(string(*patch.IOType)))
			if io != next.IOType {
				next.UnitPrice = nil
				next.CraneID = nil
				next.Crane = nil
			}
			next.IOType = io
		}
		if patch.Quantity != nil {
			next.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil {
			next.UnitPrice = patch.UnitPrice
		}
		if patch.CraneID != nil {
			next.CraneID = patch.CraneID
		}
		if patch.RecordDate != nil {
			next.RecordDate = s.dateOrToday(*patch.RecordDate)
		}
		if err := checkDrum(&next); err != nil {
			return err
		}

		if next.CraneID != nil && (next.Crane == nil || next.Crane.ID != *next.CraneID) {
			crane, err := tx.GetCrane(ctx, *next.CraneID)
			if err != nil {
				return err
			}
			next.Crane = &crane
		}
		totals, err := tx.DrumTotals(ctx, next.TruckID, next.ID)
		if err != nil {
			return err
		}
		if err := checkBalance(totals, &next); err != nil {
			return err
		}
		if err := tx.SaveDrumRecord(ctx, &next); err != nil {
			return err
		}
		record = next
		return nil
	})
	if err != nil {
		return model.OilDrumRecord{}, err
	}
	return record, nil
}

// DeleteDrumRecord soft-deletes a drum record. Removing a refill that later
// dispenses depend on is refused.
func (s *Service) DeleteDrumRecord(ctx context.Context, recordID int64) error {
	current, err := s.store.GetDrumRecord(ctx, recordID)
	if err != nil {
		return err
	}
	unlock := s.truckLocks.Lock(current.TruckID)
	defer unlock()

	return s.store.WithTruckLock(ctx, current.TruckID, func(tx store.Store) error {
		totals, err := tx.DrumTotals(ctx, current.TruckID, recordID)
		if err != nil {
			return err
		}
		if err := checkBalance(totals, nil); err != nil {
			return err
		}
		return tx.DeleteDrumRecord(ctx, recordID)
	})
}

// ListDrumRecords returns the truck's live drum records, newest first.
func (s *Service) ListDrumRecords(ctx context.Context, truckID int64) ([]model.OilDrumRecord, error) {
	if _, err := s.store.GetTruck(ctx, truckID); err != nil {
		return nil, err
	}
	return s.store.ListDrumRecords(ctx, truckID)
}

func checkFuel(r *model.TruckFuelRecord) error {
	if err := checkLitres("quantity", r.Quantity); err != nil {
		return err
	}
	return checkLitres("unit_price", r.UnitPrice)
}

// AddFuelRecord stores a refuelling of the truck's own tank.
func (s *Service) AddFuelRecord(ctx context.Context, truckID int64, in FuelInput) (model.TruckFuelRecord, error) {
	if in.Quantity == nil || in.UnitPrice == nil {
		return model.TruckFuelRecord{}, fmt.Errorf("%w: quantity and unit_price are required", ErrInvalidInput)
	}
	record := model.TruckFuelRecord{
		TruckID:    truckID,
		RecordDate: s.dateOrToday(in.RecordDate),
		Quantity:   *in.Quantity,
		UnitPrice:  *in.UnitPrice,
	}
	if err := checkFuel(&record); err != nil {
		return model.TruckFuelRecord{}, err
	}
	if _, err := s.store.GetTruck(ctx, truckID); err != nil {
		return model.TruckFuelRecord{}, err
	}
	if err := s.store.CreateFuelRecord(ctx, &record); err != nil {
		return model.TruckFuelRecord{}, err
	}
	metrics.FuelLitres.WithLabelValues("truck_fuel").Add(record.Quantity)
	return record, nil
}

// UpdateFuelRecord merges a patch into a refuelling.
func (s *Service) UpdateFuelRecord(ctx context.Context, recordID int64, patch FuelPatch) (model.TruckFuelRecord, error) {
	record, err := s.store.GetFuelRecord(ctx, recordID)
	if err != nil {
		return model.TruckFuelRecord{}, err
	}
	if patch.Quantity != nil {
		record.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil {
		record.UnitPrice = *patch.UnitPrice
	}
	if patch.RecordDate != nil {
		record.RecordDate = s.dateOrToday(*patch.RecordDate)
	}
	if err := checkFuel(&record); err != nil {
		return model.TruckFuelRecord{}, err
	}
	if err := s.store.SaveFuelRecord(ctx, &record); err != nil {
		return model.TruckFuelRecord{}, err
	}
	return record, nil
}

// DeleteFuelRecord soft-deletes a refuelling.
func (s *Service) DeleteFuelRecord(ctx context.Context, recordID int64) error {
	return s.store.DeleteFuelRecord(ctx, recordID)
}

// ListFuelRecords returns the truck's live refuellings, newest first.
func (s *Service) ListFuelRecords(ctx context.Context, truckID int64) ([]model.TruckFuelRecord, error) {
	if _, err := s.store.GetTruck(ctx, truckID); err != nil {
		return nil, err
	}
	return s.store.ListFuelRecords(ctx, truckID)
}
