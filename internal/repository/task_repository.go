package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/apperr"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/model"
)

// TaskInput carries the fields for creating a task. A nil TimeblockID puts
// the task straight into the backlog.
type TaskInput struct {
	TimeblockID      *string
	CategoryID       *string
	Title            string
	Description      *string
	Priority         model.TaskPriority
	DueDate          *string
	EstimatedMinutes *int
	SortOrder        *int
}

// TaskUpdate carries a partial update; nil fields are left untouched.
// DetachTimeblock clears the timeblock reference (nil TimeblockID alone
// means "unchanged").
type TaskUpdate struct {
	TimeblockID      *string
	DetachTimeblock  bool
	CategoryID       *string
	Title            *string
	Description      *string
	Priority         *model.TaskPriority
	DueDate          *string
	EstimatedMinutes *int
	SortOrder        *int
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, userID string, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperr.Validation("task title is required")
	}
	if len([]rune(title)) > model.MaxTaskTitleLen {
		return nil, apperr.Validation("title exceeds %d characters", model.MaxTaskTitleLen)
	}
	if input.Description != nil && len([]rune(*input.Description)) > model.MaxTaskDescriptionLen {
		return nil, apperr.Validation("description exceeds %d characters", model.MaxTaskDescriptionLen)
	}

	priority := input.Priority
	if priority == "" {
		priority = model.PriorityNone
	}
	if !priority.Valid() {
		return nil, apperr.Validation("unknown priority %q", priority)
	}

	if input.CategoryID != nil {
		if err := requireCategory(ctx, r.db, userID, *input.CategoryID); err != nil {
			return nil, err
		}
	}
	if input.TimeblockID != nil {
		if err := r.requireTimeblock(ctx, userID, *input.TimeblockID); err != nil {
			return nil, err
		}
	}

	sortOrder := 0
	if input.SortOrder != nil {
		sortOrder = *input.SortOrder
	}

	task := model.Task{
		ID:               uuid.NewString(),
		UserID:           userID,
		TimeblockID:      input.TimeblockID,
		CategoryID:       input.CategoryID,
		Title:            title,
		Description:      input.Description,
		Priority:         priority,
		DueDate:          input.DueDate,
		EstimatedMinutes: input.EstimatedMinutes,
		SortOrder:        sortOrder,
	}
	if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, apperr.Storage(err, "create task")
	}
	return &task, nil
}

// FetchBacklog returns the user's incomplete, unattached tasks, most
// recently created first.
func (r *TaskRepository) FetchBacklog(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND timeblock_id IS NULL AND is_completed = ?", userID, false).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, apperr.Storage(err, "fetch backlog")
	}
	return tasks, nil
}

// ListAll returns every task for the user. Used by the export snapshot.
func (r *TaskRepository) ListAll(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, apperr.Storage(err, "list all tasks")
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&task).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.NotFound("task %s not found", id)
	default:
		return nil, apperr.Storage(err, "find task")
	}
}

func (r *TaskRepository) Update(ctx context.Context, userID, id string, update TaskUpdate) (*model.Task, error) {
	updates := map[string]interface{}{}

	if update.DetachTimeblock {
		updates["timeblock_id"] = nil
	} else if update.TimeblockID != nil {
		if err := r.requireTimeblock(ctx, userID, *update.TimeblockID); err != nil {
			return nil, err
		}
		updates["timeblock_id"] = *update.TimeblockID
	}
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
		if title == "" {
			return nil, apperr.Validation("task title is required")
		}
		if len([]rune(title)) > model.MaxTaskTitleLen {
			return nil, apperr.Validation("title exceeds %d characters", model.MaxTaskTitleLen)
		}
		updates["title"] = title
	}
	if update.Description != nil {
		if len([]rune(*update.Description)) > model.MaxTaskDescriptionLen {
			return nil, apperr.Validation("description exceeds %d characters", model.MaxTaskDescriptionLen)
		}
		updates["description"] = *update.Description
	}
	if update.Priority != nil {
		if !update.Priority.Valid() {
			return nil, apperr.Validation("unknown priority %q", *update.Priority)
		}
		updates["priority"] = *update.Priority
	}
	if update.DueDate != nil {
		updates["due_date"] = *update.DueDate
	}
	if update.EstimatedMinutes != nil {
		updates["estimated_minutes"] = *update.EstimatedMinutes
	}
	if update.SortOrder != nil {
		updates["sort_order"] = *update.SortOrder
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&model.Task{}).
			Where("user_id = ? AND id = ?", userID, id).Updates(updates)
		if res.Error != nil {
			return nil, apperr.Storage(res.Error, "update task")
		}
		if res.RowsAffected == 0 {
			return nil, apperr.NotFound("task %s not found", id)
		}
	}
	return r.FindByID(ctx, userID, id)
}

// ToggleComplete flips the completion flag atomically at the store, so two
// racing toggles land as two flips rather than a lost update. CompletedAt
// is set with the false-to-true transition and cleared with the reverse.
func (r *TaskRepository) ToggleComplete(ctx context.Context, userID, id string) (*model.Task, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(map[string]interface{}{
			"is_completed": gorm.Expr("NOT is_completed"),
			"completed_at": gorm.Expr("CASE WHEN is_completed THEN NULL ELSE ? END", now),
		})
	if res.Error != nil {
		return nil, apperr.Storage(res.Error, "toggle task")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("task %s not found", id)
	}
	return r.FindByID(ctx, userID, id)
}

// Delete removes a task permanently.
func (r *TaskRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.Task{})
	if res.Error != nil {
		return apperr.Storage(res.Error, "delete task")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("task %s not found", id)
	}
	return nil
}

// DetachIncompleteBefore moves incomplete tasks whose timeblock is dated
// strictly before the boundary into the backlog, returning how many moved.
// The inner join means backlog tasks are never selected. The select and the
// batch detach run in one transaction.
func (r *TaskRepository) DetachIncompleteBefore(ctx context.Context, userID, dateBoundary string) (int, error) {
	var moved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&model.Task{}).
			Joins("JOIN timeblocks ON timeblocks.id = tasks.timeblock_id").
			Where("tasks.user_id = ? AND tasks.is_completed = ? AND timeblocks.date < ?", userID, false, dateBoundary).
			Pluck("tasks.id", &ids).Error; err != nil {
			return apperr.Storage(err, "select overdue tasks")
		}
		if len(ids) == 0 {
			return nil
		}
		res := tx.Model(&model.Task{}).Where("id IN ?", ids).Update("timeblock_id", nil)
		if res.Error != nil {
			return apperr.Storage(res.Error, "detach overdue tasks")
		}
		moved = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(moved), nil
}

func (r *TaskRepository) requireTimeblock(ctx context.Context, userID, timeblockID string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Timeblock{}).
		Where("user_id = ? AND id = ?", userID, timeblockID).
		Count(&count).Error; err != nil {
		return apperr.Storage(err, "check timeblock")
	}
	if count == 0 {
		return apperr.Validation("unknown timeblock %s", timeblockID)
	}
	return nil
}
