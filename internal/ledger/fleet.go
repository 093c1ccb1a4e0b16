package ledger

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"crane-fleet-backend/internal/model"
)

// CraneInput is the payload of a crane create or admin update.
type CraneInput struct {
	Number       string
	Type         model.CraneType
	InitialHours *int64
}

// CraneSummary is a crane together with its freshly recomputed running hours.
type CraneSummary struct {
	Crane        model.Crane
	RunningHours model.RunningHours
	Alert        bool
}

// TaskInput is the payload of a daily task log write. On update, zero or nil
// fields keep the stored value. WorkTime is required on create.
type TaskInput struct {
	CraneID  int64
	TaskDate time.Time
	Vendor   *string
	WorkTime *float64
	Note     *string
}

func (in *CraneInput) normalize() error {
	in.Number = strings.TrimSpace(in.Number)
	if in.Number == "" {
		return fmt.Errorf("%w: crane number is required", ErrInvalidInput)
	}
	switch in.Type {
	case model.CraneTypeTracked, model.CraneTypeWheeled:
	default:
		return fmt.Errorf("%w: crane type %q", ErrInvalidInput, in.Type)
	}
	if in.InitialHours != nil && *in.InitialHours < 0 {
		return fmt.Errorf("%w: negative initial hours", ErrInvalidInput)
	}
	return nil
}

// CreateCrane registers a crane and seeds its running-hours cache.
func (s *Service) CreateCrane(ctx context.Context, in CraneInput) (CraneSummary, error) {
	if err := in.normalize(); err != nil {
		return CraneSummary{}, err
	}
	if _, taken, err := s.store.FindCraneByNumber(ctx, in.Number); err != nil {
		return CraneSummary{}, err
	} else if taken {
		return CraneSummary{}, fmt.Errorf("%w: crane number %q already exists", ErrConflict, in.Number)
	}

	crane := model.Crane{Number: in.Number, Type: in.Type, InitialHours: s.defaultInitialHours}
	if in.InitialHours != nil {
		crane.InitialHours = *in.InitialHours
	}
	if err := s.store.CreateCrane(ctx, &crane); err != nil {
		return CraneSummary{}, err
	}
	log.Printf("Registered crane %d (%s, %s, initial %dh)", crane.ID, crane.Number, crane.Type, crane.InitialHours)
	return s.summary(ctx, crane)
}

// UpdateCrane applies an administrative change and recomputes running hours.
func (s *Service) UpdateCrane(ctx context.Context, craneID int64, in CraneInput) (CraneSummary, error) {
	crane, err := s.store.GetCrane(ctx, craneID)
	if err != nil {
		return CraneSummary{}, err
	}
	if in.Number == "" {
		in.Number = crane.Number
	}
	if in.Type == "" {
		in.Type = crane.Type
	}
	if err := in.normalize(); err != nil {
		return CraneSummary{}, err
	}
	if in.Number != crane.Number {
		if other, taken, err := s.store.FindCraneByNumber(ctx, in.Number); err != nil {
			return CraneSummary{}, err
		} else if taken && other.ID != crane.ID {
			return CraneSummary{}, fmt.Errorf("%w: crane number %q already exists", ErrConflict, in.Number)
		}
	}

	crane.Number = in.Number
	crane.Type = in.Type
	if in.InitialHours != nil {
		crane.InitialHours = *in.InitialHours
	}
	if err := s.store.UpdateCrane(ctx, &crane); err != nil {
		return CraneSummary{}, err
	}
	return s.summary(ctx, crane)
}

// GetCrane returns one crane with its running hours.
func (s *Service) GetCrane(ctx context.Context, craneID int64) (CraneSummary, error) {
	crane, err := s.store.GetCrane(ctx, craneID)
	if err != nil {
		return CraneSummary{}, err
	}
	return s.summary(ctx, crane)
}

// ListCranes returns every crane with its running hours and alert flag.
func (s *Service) ListCranes(ctx context.Context) ([]CraneSummary, error) {
	cranes, err := s.store.ListCranes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CraneSummary, 0, len(cranes))
	for _, c := range cranes {
		sum, err := s.summary(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) summary(ctx context.Context, crane model.Crane) (CraneSummary, error) {
	rh, err := s.RecomputeTotalHours(ctx, crane.ID)
	if err != nil {
		return CraneSummary{}, err
	}
	return CraneSummary{
		Crane:        crane,
		RunningHours: rh,
		Alert:        rh.TotalHours > crane.AlertThreshold(),
	}, nil
}

func checkWorkTime(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: work time %v", ErrInvalidInput, v)
	}
	return nil
}

// CreateTask logs a day of work and refreshes the crane's running hours.
func (s *Service) CreateTask(ctx context.Context, in TaskInput) (model.DailyTask, model.RunningHours, error) {
	if in.WorkTime == nil {
		return model.DailyTask{}, model.RunningHours{}, fmt.Errorf("%w: work_time is required", ErrInvalidInput)
	}
	if err := checkWorkTime(*in.WorkTime); err != nil {
		return model.DailyTask{}, model.RunningHours{}, err
	}
	crane, err := s.store.GetCrane(ctx, in.CraneID)
	if err != nil {
		return model.DailyTask{}, model.RunningHours{}, err
	}

	task := model.DailyTask{
		CraneID:  in.CraneID,
		TaskDate: s.dateOrToday(in.TaskDate),
		WorkTime: *in.WorkTime,
		Crane:    crane,
	}
	if in.Vendor != nil {
		task.Vendor = strings.TrimSpace(*in.Vendor)
	}
	if in.Note != nil {
		task.Note = *in.Note
	}
	if err := s.store.CreateTask(ctx, &task); err != nil {
		return model.DailyTask{}, model.RunningHours{}, err
	}
	rh, err := s.RecomputeTotalHours(ctx, task.CraneID)
	if err != nil {
		return model.DailyTask{}, model.RunningHours{}, err
	}
	return task, rh, nil
}

// GetTask returns a live task log.
func (s *Service) GetTask(ctx context.Context, taskID int64) (model.DailyTask, error) {
	return s.store.GetTask(ctx, taskID)
}

// ListTasks returns live task logs, newest first, optionally for one crane.
func (s *Service) ListTasks(ctx context.Context, craneID int64) ([]model.DailyTask, error) {
	if craneID > 0 {
		if _, err := s.store.GetCrane(ctx, craneID); err != nil {
			return nil, err
		}
	}
	return s.store.ListTasks(ctx, craneID)
}

// UpdateTask merges the input into a task log. When the task moves to another
// crane both cranes' running hours are recomputed.
func (s *Service) UpdateTask(ctx context.Context, taskID int64, in TaskInput) (model.DailyTask, model.RunningHours, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return model.DailyTask{}, model.RunningHours{}, err
	}
	if in.WorkTime != nil {
		if err := checkWorkTime(*in.WorkTime); err != nil {
			return model.DailyTask{}, model.RunningHours{}, err
		}
		task.WorkTime = *in.WorkTime
	}
	oldCrane := task.CraneID
	if in.CraneID != 0 && in.CraneID != task.CraneID {
		crane, err := s.store.GetCrane(ctx, in.CraneID)
		if err != nil {
			return model.DailyTask{}, model.RunningHours{}, err
		}
		task.CraneID = crane.ID
		task.Crane = crane
	}
	if !in.TaskDate.IsZero() {
		task.TaskDate = s.dateOrToday(in.TaskDate)
	}
	if in.Vendor != nil {
		task.Vendor = strings.TrimSpace(*in.Vendor)
	}
	if in.Note != nil {
		task.Note = *in.Note
	}
	if err := s.store.UpdateTask(ctx, &task); err != nil {
		return model.DailyTask{}, model.RunningHours{}, err
	}

	if oldCrane != task.CraneID {
		if _, err := s.RecomputeTotalHours(ctx, oldCrane); err != nil {
			return model.DailyTask{}, model.RunningHours{}, err
		}
	}
	rh, err := s.RecomputeTotalHours(ctx, task.CraneID)
	if err != nil {
		return model.DailyTask{}, model.RunningHours{}, err
	}
	return task, rh, nil
}

// DeleteTask soft-deletes a task log and refreshes the crane's running hours.
func (s *Service) DeleteTask(ctx context.Context, taskID int64) (model.RunningHours, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return model.RunningHours{}, err
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return model.RunningHours{}, err
	}
	return s.RecomputeTotalHours(ctx, task.CraneID)
}
