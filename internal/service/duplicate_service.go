package service

import (
	"context"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/apperr"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/model"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/repository"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/timegrid"
)

// DuplicateInput names the clone target.
type DuplicateInput struct {
	TimeblockID  string `json:"timeblock_id"`
	TargetDate   string `json:"target_date"`
	TargetTime   string `json:"target_time"`
	IncludeTasks bool   `json:"include_tasks"`
}

// DuplicateResult is the newly created timeblock and its cloned tasks.
// Tasks is empty, not nil, when task duplication was skipped.
type DuplicateResult struct {
	Timeblock model.TimeblockWithRelations `json:"timeblock"`
	Tasks     []model.Task                 `json:"tasks"`
}

// DuplicateService clones a timeblock onto a new date and start time.
type DuplicateService struct {
	repos *repository.Registry
}

func NewDuplicateService(repos *repository.Registry) *DuplicateService {
	return &DuplicateService{repos: repos}
}

// Duplicate clones the source block to the target placement. Duration is
// preserved and the end time recomputed from the target start; the clone
// always starts out scheduled, and cloned tasks always start incomplete.
// The timeblock insert and the task inserts are one transaction, so a
// failed task copy never strands an empty clone.
func (s *DuplicateService) Duplicate(ctx context.Context, userID string, input DuplicateInput) (*DuplicateResult, error) {
	if input.TimeblockID == "" {
		return nil, apperr.Validation("timeblock_id is required")
	}
	if _, err := timegrid.ParseDateISO(input.TargetDate); err != nil {
		return nil, apperr.Validation("invalid target date %q", input.TargetDate)
	}
	if _, _, err := timegrid.SplitTime(input.TargetTime); err != nil {
		return nil, apperr.Validation("invalid target time %q", input.TargetTime)
	}

	source, err := s.repos.Timeblocks.FindByID(ctx, userID, input.TimeblockID)
	if err != nil {
		return nil, err
	}

	result := DuplicateResult{Tasks: []model.Task{}}
	err = s.repos.Atomic(ctx, func(tx *repository.Registry) error {
		clone, err := tx.Timeblocks.Create(ctx, userID, repository.TimeblockInput{
			CategoryID:      source.CategoryID,
			Title:           source.Title,
			Date:            input.TargetDate,
			StartTime:       input.TargetTime,
			DurationMinutes: source.DurationMinutes,
			Status:          model.StatusScheduled,
		})
		if err != nil {
			return err
		}
		result.Timeblock = *clone

		if !input.IncludeTasks {
			return nil
		}
		for _, task := range source.Tasks {
			sortOrder := task.SortOrder
			copied, err := tx.Tasks.Create(ctx, userID, repository.TaskInput{
				TimeblockID:      &clone.ID,
				CategoryID:       task.CategoryID,
				Title:            task.Title,
				Description:      task.Description,
				Priority:         task.Priority,
				EstimatedMinutes: task.EstimatedMinutes,
				SortOrder:        &sortOrder,
			})
			if err != nil {
				return err
			}
			result.Tasks = append(result.Tasks, *copied)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
