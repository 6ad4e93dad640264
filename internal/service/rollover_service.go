package service

import (
	"context"
	"fmt"
	"log"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/repository"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/timegrid"
)

// RolloverService moves overdue incomplete tasks into the backlog. The
// day boundary is computed server-side, never taken from the client.
type RolloverService struct {
	profiles *repository.ProfileRepository
	tasks    *repository.TaskRepository
}

func NewRolloverService(profiles *repository.ProfileRepository, tasks *repository.TaskRepository) *RolloverService {
	return &RolloverService{profiles: profiles, tasks: tasks}
}

// Rollover detaches the caller's incomplete tasks from timeblocks dated
// strictly before today and returns how many moved. Idempotent: a second
// run against the same boundary finds nothing left to move.
func (s *RolloverService) Rollover(ctx context.Context, userID string) (int, error) {
	today := timegrid.TodayISO()
	moved, err := s.tasks.DetachIncompleteBefore(ctx, userID, today)
	if err != nil {
		return 0, fmt.Errorf("rollover for %s: %w", userID, err)
	}
	return moved, nil
}

// RolloverAll runs the rollover for every known user. Wired to the nightly
// scheduler; one user's failure does not stop the sweep.
func (s *RolloverService) RolloverAll(ctx context.Context) error {
	ids, err := s.profiles.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var failed int
	for _, id := range ids {
		moved, err := s.Rollover(ctx, id)
		if err != nil {
			failed++
			log.Printf("rollover user %s: %v", id, err)
			continue
		}
		if moved > 0 {
			log.Printf("rollover user %s: moved %d tasks to backlog", id, moved)
		}
	}
	if failed > 0 {
		return fmt.Errorf("rollover failed for %d of %d users", failed, len(ids))
	}
	return nil
}
