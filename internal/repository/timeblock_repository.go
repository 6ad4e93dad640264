package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/apperr"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/model"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/timegrid"
)

// TimeblockInput carries the fields for creating a timeblock. EndTime is
// never accepted from the caller; it is derived from start plus duration.
type TimeblockInput struct {
	CategoryID      *string
	Title           *string
	Date            string
	StartTime       string
	DurationMinutes int
	Status          model.TimeblockStatus
}

// TimeblockUpdate carries a partial update; nil fields are left untouched.
type TimeblockUpdate struct {
	CategoryID      *string
	Title           *string
	Date            *string
	StartTime       *string
	DurationMinutes *int
	Status          *model.TimeblockStatus
}

// TimeblockRepository handles CRUD for timeblocks.
type TimeblockRepository struct {
	db *gorm.DB
}

func NewTimeblockRepository(db *gorm.DB) *TimeblockRepository {
	return &TimeblockRepository{db: db}
}

func validateDuration(minutes int) error {
	if minutes < timegrid.MinDurationMinutes {
		return apperr.Validation("duration must be at least %d minutes", timegrid.MinDurationMinutes)
	}
	if minutes > timegrid.MaxDurationMinutes {
		return apperr.Validation("duration must not exceed %d minutes", timegrid.MaxDurationMinutes)
	}
	if minutes%timegrid.SlotMinutes != 0 {
		return apperr.Validation("duration must be a multiple of %d minutes", timegrid.SlotMinutes)
	}
	return nil
}

func validateTimeblockInput(input *TimeblockInput) error {
	if err := validateDuration(input.DurationMinutes); err != nil {
		return err
	}
	if _, err := timegrid.ParseDateISO(input.Date); err != nil {
		return apperr.Validation("invalid date %q", input.Date)
	}
	if _, _, err := timegrid.SplitTime(input.StartTime); err != nil {
		return apperr.Validation("invalid start time %q", input.StartTime)
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if len([]rune(title)) > model.MaxTimeblockTitleLen {
			return apperr.Validation("title exceeds %d characters", model.MaxTimeblockTitleLen)
		}
		input.Title = &title
	}
	return nil
}

// Create validates the input, derives the end time and persists the block.
// The returned record carries its category resolved.
func (r *TimeblockRepository) Create(ctx context.Context, userID string, input TimeblockInput) (*model.TimeblockWithRelations, error) {
	if err := validateTimeblockInput(&input); err != nil {
		return nil, err
	}
	if input.CategoryID != nil {
		if err := requireCategory(ctx, r.db, userID, *input.CategoryID); err != nil {
			return nil, err
		}
	}

	endTime, err := timegrid.AddMinutesToTime(input.StartTime, input.DurationMinutes)
	if err != nil {
		return nil, apperr.Validation("invalid start time %q", input.StartTime)
	}

	status := input.Status
	if status == "" {
		status = model.StatusScheduled
	}
	if !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}

	block := model.Timeblock{
		ID:              uuid.NewString(),
		UserID:          userID,
		CategoryID:      input.CategoryID,
		Title:           input.Title,
		Date:            input.Date,
		StartTime:       input.StartTime,
		EndTime:         endTime,
		DurationMinutes: input.DurationMinutes,
		Status:          status,
	}
	if err := r.db.WithContext(ctx).Create(&block).Error; err != nil {
		return nil, apperr.Storage(err, "create timeblock")
	}
	return r.withRelations(ctx, userID, block)
}

// FetchForDate returns the user's timeblocks on exactly one date, ordered
// by start time (id as a deterministic tie-break), each composed with its
// category and tasks.
func (r *TimeblockRepository) FetchForDate(ctx context.Context, userID, date string) ([]model.TimeblockWithRelations, error) {
	var blocks []model.Timeblock
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Order("start_time ASC, id ASC").
		Find(&blocks).Error; err != nil {
		return nil, apperr.Storage(err, "fetch timeblocks for %s", date)
	}

	out := make([]model.TimeblockWithRelations, 0, len(blocks))
	for _, block := range blocks {
		composed, err := r.withRelations(ctx, userID, block)
		if err != nil {
			return nil, err
		}
		out = append(out, *composed)
	}
	return out, nil
}

// ListAll returns every timeblock for the user. Used by the export snapshot.
func (r *TimeblockRepository) ListAll(ctx context.Context, userID string) ([]model.Timeblock, error) {
	var blocks []model.Timeblock
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("date ASC, start_time ASC, id ASC").
		Find(&blocks).Error; err != nil {
		return nil, apperr.Storage(err, "list all timeblocks")
	}
	return blocks, nil
}

// FindByID returns one timeblock with its tasks attached.
func (r *TimeblockRepository) FindByID(ctx context.Context, userID, id string) (*model.TimeblockWithRelations, error) {
	var block model.Timeblock
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&block).Error
	switch {
	case err == nil:
		return r.withRelations(ctx, userID, block)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.NotFound("timeblock %s not found", id)
	default:
		return nil, apperr.Storage(err, "find timeblock")
	}
}

// Update applies a partial update. Changing start time or duration
// recomputes the end time so the derived-field invariant holds.
func (r *TimeblockRepository) Update(ctx context.Context, userID, id string, update TimeblockUpdate) (*model.TimeblockWithRelations, error) {
	current, err := r.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	startTime := current.StartTime
	duration := current.DurationMinutes

	if update.CategoryID != nil {
		if *update.CategoryID != "" {
			if err := requireCategory(ctx, r.db, userID, *update.CategoryID); err != nil {
				return nil, err
			}
			updates["category_id"] = *update.CategoryID
		} else {
			updates["category_id"] = nil
		}
	}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if len([]rune(title)) > model.MaxTimeblockTitleLen {
			return nil, apperr.Validation("title exceeds %d characters", model.MaxTimeblockTitleLen)
		}
		updates["title"] = title
	}
	if update.Date != nil {
		if _, err := timegrid.ParseDateISO(*update.Date); err != nil {
			return nil, apperr.Validation("invalid date %q", *update.Date)
		}
		updates["date"] = *update.Date
	}
	if update.StartTime != nil {
		if _, _, err := timegrid.SplitTime(*update.StartTime); err != nil {
			return nil, apperr.Validation("invalid start time %q", *update.StartTime)
		}
		startTime = *update.StartTime
		updates["start_time"] = startTime
	}
	if update.DurationMinutes != nil {
		if err := validateDuration(*update.DurationMinutes); err != nil {
			return nil, err
		}
		duration = *update.DurationMinutes
		updates["duration_minutes"] = duration
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, apperr.Validation("unknown status %q", *update.Status)
		}
		updates["status"] = *update.Status
	}

	if update.StartTime != nil || update.DurationMinutes != nil {
		endTime, err := timegrid.AddMinutesToTime(startTime, duration)
		if err != nil {
			return nil, apperr.Validation("invalid start time %q", startTime)
		}
		updates["end_time"] = endTime
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&model.Timeblock{}).
			Where("user_id = ? AND id = ?", userID, id).Updates(updates)
		if res.Error != nil {
			return nil, apperr.Storage(res.Error, "update timeblock")
		}
		if res.RowsAffected == 0 {
			return nil, apperr.NotFound("timeblock %s not found", id)
		}
	}
	return r.FindByID(ctx, userID, id)
}

// Delete removes a timeblock. Its tasks are detached to the backlog, not
// deleted, in the same transaction.
func (r *TimeblockRepository) Delete(ctx context.Context, userID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Task{}).
			Where("user_id = ? AND timeblock_id = ?", userID, id).
			Update("timeblock_id", nil).Error; err != nil {
			return apperr.Storage(err, "detach tasks")
		}
		res := tx.Where("user_id = ? AND id = ?", userID, id).Delete(&model.Timeblock{})
		if res.Error != nil {
			return apperr.Storage(res.Error, "delete timeblock")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("timeblock %s not found", id)
		}
		return nil
	})
}

// withRelations assembles the read model: the block row plus its resolved
// category and its tasks ordered by sort order.
func (r *TimeblockRepository) withRelations(ctx context.Context, userID string, block model.Timeblock) (*model.TimeblockWithRelations, error) {
	composed := model.TimeblockWithRelations{Timeblock: block, Tasks: []model.Task{}}

	if block.CategoryID != nil {
		var category model.Category
		err := r.db.WithContext(ctx).
			Where("user_id = ? AND id = ?", userID, *block.CategoryID).
			First(&category).Error
		switch {
		case err == nil:
			composed.Category = &category
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Reference resolves to nothing; leave the category absent.
		default:
			return nil, apperr.Storage(err, "resolve category")
		}
	}

	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND timeblock_id = ?", userID, block.ID).
		Order("sort_order ASC, created_at ASC").
		Find(&composed.Tasks).Error; err != nil {
		return nil, apperr.Storage(err, "load tasks")
	}
	return &composed, nil
}
