// Package client is the state container the UI layers drive. It replaces
// ambient shared mutation with one explicit store: every transition is a
// method, reads go through an immutable snapshot, and each mutation
// refetches the slices it touched.
package client

import (
	"context"
	"sync"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/apperr"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/model"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/repository"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/service"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/timegrid"
)

// State is one immutable view of everything the UI renders.
type State struct {
	Profile      *model.Profile
	SelectedDate string
	Categories   []model.Category
	Timeblocks   []model.TimeblockWithRelations
	BacklogTasks []model.Task
}

// Store orchestrates the repositories and the three server operations for
// one signed-in user.
type Store struct {
	userID string
	email  string

	repos     *repository.Registry
	rollover  *service.RolloverService
	duplicate *service.DuplicateService
	export    *service.ExportService

	mu                sync.Mutex
	state             State
	duplicateInFlight map[string]bool
}

func NewStore(userID, email string, repos *repository.Registry, rollover *service.RolloverService, duplicate *service.DuplicateService, export *service.ExportService) *Store {
	return &Store{
		userID:            userID,
		email:             email,
		repos:             repos,
		rollover:          rollover,
		duplicate:         duplicate,
		export:            export,
		state:             State{SelectedDate: timegrid.TodayISO()},
		duplicateInFlight: map[string]bool{},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Categories = append([]model.Category(nil), s.state.Categories...)
	st.Timeblocks = append([]model.TimeblockWithRelations(nil), s.state.Timeblocks...)
	st.BacklogTasks = append([]model.Task(nil), s.state.BacklogTasks...)
	return st
}

// LoadProfile resolves the signed-in user's profile, creating it on first
// sign-in, and primes the category list.
func (s *Store) LoadProfile(ctx context.Context) error {
	profile, err := s.repos.Profiles.Ensure(ctx, s.userID, s.email)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Profile = profile
	s.mu.Unlock()
	return s.FetchCategories(ctx)
}

// SetSelectedDate switches the day view and refetches its timeblocks.
func (s *Store) SetSelectedDate(ctx context.Context, date string) error {
	if _, err := timegrid.ParseDateISO(date); err != nil {
		return apperr.Validation("invalid date %q", date)
	}
	s.mu.Lock()
	s.state.SelectedDate = date
	s.mu.Unlock()
	return s.FetchTimeblocks(ctx)
}

func (s *Store) FetchCategories(ctx context.Context) error {
	categories, err := s.repos.Categories.ListActive(ctx, s.userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Categories = categories
	s.mu.Unlock()
	return nil
}

// FetchTimeblocks reloads the selected day's blocks with their relations.
func (s *Store) FetchTimeblocks(ctx context.Context) error {
	s.mu.Lock()
	date := s.state.SelectedDate
	s.mu.Unlock()

	blocks, err := s.repos.Timeblocks.FetchForDate(ctx, s.userID, date)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Timeblocks = blocks
	s.mu.Unlock()
	return nil
}

func (s *Store) FetchBacklog(ctx context.Context) error {
	tasks, err := s.repos.Tasks.FetchBacklog(ctx, s.userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.BacklogTasks = tasks
	s.mu.Unlock()
	return nil
}

func (s *Store) CreateCategory(ctx context.Context, input repository.CategoryInput) (*model.Category, error) {
	category, err := s.repos.Categories.Create(ctx, s.userID, input)
	if err != nil {
		return nil, err
	}
	return category, s.FetchCategories(ctx)
}

func (s *Store) UpdateCategory(ctx context.Context, id string, update repository.CategoryUpdate) error {
	if _, err := s.repos.Categories.Update(ctx, s.userID, id, update); err != nil {
		return err
	}
	return s.FetchCategories(ctx)
}

// ArchiveCategory soft-deletes a category. The day view is refetched too:
// blocks referencing it now render without a category.
func (s *Store) ArchiveCategory(ctx context.Context, id string) error {
	if err := s.repos.Categories.Archive(ctx, s.userID, id); err != nil {
		return err
	}
	if err := s.FetchCategories(ctx); err != nil {
		return err
	}
	return s.FetchTimeblocks(ctx)
}

// CreateTimeblock persists a block on the selected day. The returned
// overlap flag warns, without rejecting, when the new block collides with
// an existing one on the same date.
func (s *Store) CreateTimeblock(ctx context.Context, input repository.TimeblockInput) (*model.TimeblockWithRelations, bool, error) {
	overlaps, err := s.wouldOverlap(ctx, input.Date, input.StartTime, input.DurationMinutes)
	if err != nil {
		return nil, false, err
	}
	block, err := s.repos.Timeblocks.Create(ctx, s.userID, input)
	if err != nil {
		return nil, false, err
	}
	return block, overlaps, s.FetchTimeblocks(ctx)
}

func (s *Store) wouldOverlap(ctx context.Context, date, startTime string, durationMinutes int) (bool, error) {
	endTime, err := timegrid.AddMinutesToTime(startTime, durationMinutes)
	if err != nil {
		return false, nil // creation will surface the validation error
	}
	existing, err := s.repos.Timeblocks.FetchForDate(ctx, s.userID, date)
	if err != nil {
		return false, err
	}
	for _, block := range existing {
		if timegrid.DoTimesOverlap(startTime, endTime, block.StartTime, block.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateTimeblock(ctx context.Context, id string, update repository.TimeblockUpdate) error {
	if _, err := s.repos.Timeblocks.Update(ctx, s.userID, id, update); err != nil {
		return err
	}
	return s.FetchTimeblocks(ctx)
}

// DeleteTimeblock removes a block; its tasks land in the backlog, so both
// slices refresh.
func (s *Store) DeleteTimeblock(ctx context.Context, id string) error {
	if err := s.repos.Timeblocks.Delete(ctx, s.userID, id); err != nil {
		return err
	}
	if err := s.FetchTimeblocks(ctx); err != nil {
		return err
	}
	return s.FetchBacklog(ctx)
}

func (s *Store) CreateTask(ctx context.Context, input repository.TaskInput) (*model.Task, error) {
	task, err := s.repos.Tasks.Create(ctx, s.userID, input)
	if err != nil {
		return nil, err
	}
	return task, s.refreshTaskSlices(ctx)
}

func (s *Store) UpdateTask(ctx context.Context, id string, update repository.TaskUpdate) error {
	if _, err := s.repos.Tasks.Update(ctx, s.userID, id, update); err != nil {
		return err
	}
	return s.refreshTaskSlices(ctx)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := s.repos.Tasks.Delete(ctx, s.userID, id); err != nil {
		return err
	}
	return s.refreshTaskSlices(ctx)
}

// ToggleTask flips completion at the store of record, so rapid toggles
// from two devices land as two flips.
func (s *Store) ToggleTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.repos.Tasks.ToggleComplete(ctx, s.userID, id)
	if err != nil {
		return nil, err
	}
	return task, s.refreshTaskSlices(ctx)
}

// RolloverTasks sweeps overdue tasks into the backlog. Safe to retry.
func (s *Store) RolloverTasks(ctx context.Context) (int, error) {
	moved, err := s.rollover.Rollover(ctx, s.userID)
	if err != nil {
		return 0, err
	}
	if err := s.refreshTaskSlices(ctx); err != nil {
		return moved, err
	}
	return moved, nil
}

// DuplicateTimeblock clones a block. A second call for the same source
// while one is in flight is refused; a blind retry after an ambiguous
// failure would otherwise create a second clone.
func (s *Store) DuplicateTimeblock(ctx context.Context, input service.DuplicateInput) (*service.DuplicateResult, error) {
	s.mu.Lock()
	if s.duplicateInFlight[input.TimeblockID] {
		s.mu.Unlock()
		return nil, apperr.Validation("duplicate already in progress for timeblock %s", input.TimeblockID)
	}
	s.duplicateInFlight[input.TimeblockID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.duplicateInFlight, input.TimeblockID)
		s.mu.Unlock()
	}()

	result, err := s.duplicate.Duplicate(ctx, s.userID, input)
	if err != nil {
		return nil, err
	}
	return result, s.FetchTimeblocks(ctx)
}

// ExportData downloads the full snapshot for the user.
func (s *Store) ExportData(ctx context.Context) (*service.ExportDocument, error) {
	return s.export.Export(ctx, s.userID, s.email)
}

func (s *Store) refreshTaskSlices(ctx context.Context) error {
	if err := s.FetchTimeblocks(ctx); err != nil {
		return err
	}
	return s.FetchBacklog(ctx)
}
