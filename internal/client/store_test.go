package client

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/apperr"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/repository"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/service"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/timegrid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.NewDB(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repos := repository.NewRegistry(db)
	store := NewStore(
		"user-1", "user-1@example.com",
		repos,
		service.NewRolloverService(repos.Profiles, repos.Tasks),
		service.NewDuplicateService(repos),
		service.NewExportService(repos),
	)
	if err := store.LoadProfile(context.Background()); err != nil {
		t.Fatalf("load profile: %v", err)
	}
	return store
}

func strPtr(s string) *string { return &s }

func TestLoadProfilePrimesState(t *testing.T) {
	store := newTestStore(t)
	state := store.Snapshot()

	if state.Profile == nil || state.Profile.ID != "user-1" {
		t.Fatalf("expected profile loaded, got %+v", state.Profile)
	}
	if state.SelectedDate != timegrid.TodayISO() {
		t.Fatalf("expected today selected, got %q", state.SelectedDate)
	}
	if len(state.Categories) != 4 {
		t.Fatalf("expected seeded categories in state, got %d", len(state.Categories))
	}
}

func TestCreateTimeblockRefreshesDayAndFlagsOverlap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetSelectedDate(ctx, "2026-09-01"); err != nil {
		t.Fatalf("select date: %v", err)
	}

	_, overlapped, err := store.CreateTimeblock(ctx, repository.TimeblockInput{
		Date: "2026-09-01", StartTime: "09:00", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if overlapped {
		t.Fatalf("first block cannot overlap")
	}

	// Overlapping create succeeds but warns.
	block, overlapped, err := store.CreateTimeblock(ctx, repository.TimeblockInput{
		Date: "2026-09-01", StartTime: "09:30", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if !overlapped {
		t.Fatalf("expected overlap warning")
	}
	if block == nil {
		t.Fatalf("overlap must not block creation")
	}

	// Adjacent block does not warn: [10:30,11:30) touches [09:30,10:30).
	_, overlapped, err = store.CreateTimeblock(ctx, repository.TimeblockInput{
		Date: "2026-09-01", StartTime: "10:30", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create third: %v", err)
	}
	if overlapped {
		t.Fatalf("touching blocks are not overlapping")
	}

	state := store.Snapshot()
	if len(state.Timeblocks) != 3 {
		t.Fatalf("expected day view refreshed with 3 blocks, got %d", len(state.Timeblocks))
	}
}

func TestDeleteTimeblockMovesTasksIntoBacklogSlice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetSelectedDate(ctx, "2026-09-01"); err != nil {
		t.Fatalf("select date: %v", err)
	}
	block, _, err := store.CreateTimeblock(ctx, repository.TimeblockInput{
		Date: "2026-09-01", StartTime: "09:00", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	if _, err := store.CreateTask(ctx, repository.TaskInput{
		Title: "Orphan me", TimeblockID: &block.ID,
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := store.DeleteTimeblock(ctx, block.ID); err != nil {
		t.Fatalf("delete block: %v", err)
	}

	state := store.Snapshot()
	if len(state.Timeblocks) != 0 {
		t.Fatalf("expected empty day after delete, got %d blocks", len(state.Timeblocks))
	}
	if len(state.BacklogTasks) != 1 || state.BacklogTasks[0].Title != "Orphan me" {
		t.Fatalf("expected detached task in backlog slice, got %v", state.BacklogTasks)
	}
}

func TestToggleTaskUpdatesSlices(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, repository.TaskInput{Title: "Backlog item"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if len(store.Snapshot().BacklogTasks) != 1 {
		t.Fatalf("expected task in backlog")
	}

	toggled, err := store.ToggleTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.IsCompleted {
		t.Fatalf("expected completed")
	}
	// Completed tasks drop out of the backlog slice.
	if len(store.Snapshot().BacklogTasks) != 0 {
		t.Fatalf("expected backlog emptied after completion")
	}
}

func TestRolloverActionRefreshesBacklog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	yesterday, err := timegrid.AddDays(timegrid.TodayISO(), -1)
	if err != nil {
		t.Fatalf("yesterday: %v", err)
	}
	block, _, err := store.CreateTimeblock(ctx, repository.TimeblockInput{
		Date: yesterday, StartTime: "09:00", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	if _, err := store.CreateTask(ctx, repository.TaskInput{
		Title: "Overdue", TimeblockID: &block.ID,
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	moved, err := store.RolloverTasks(ctx)
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 moved, got %d", moved)
	}
	state := store.Snapshot()
	if len(state.BacklogTasks) != 1 {
		t.Fatalf("expected backlog refreshed with the rolled task, got %d", len(state.BacklogTasks))
	}
}

func TestDuplicateActionAndInFlightGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetSelectedDate(ctx, "2026-09-02"); err != nil {
		t.Fatalf("select date: %v", err)
	}
	source, _, err := store.CreateTimeblock(ctx, repository.TimeblockInput{
		Title: strPtr("Clone me"),
		Date:  "2026-09-01", StartTime: "09:00", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	result, err := store.DuplicateTimeblock(ctx, service.DuplicateInput{
		TimeblockID: source.ID,
		TargetDate:  "2026-09-02",
		TargetTime:  "14:00",
	})
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if result.Timeblock.StartTime != "14:00" || result.Timeblock.EndTime != "15:00" {
		t.Fatalf("unexpected clone placement %s-%s", result.Timeblock.StartTime, result.Timeblock.EndTime)
	}

	// Clone landed on the selected day, so the slice refreshed.
	state := store.Snapshot()
	if len(state.Timeblocks) != 1 || state.Timeblocks[0].ID != result.Timeblock.ID {
		t.Fatalf("expected clone in the selected day view")
	}

	// The guard refuses a second call only while one is in flight;
	// a sequential call goes through and makes a distinct clone.
	second, err := store.DuplicateTimeblock(ctx, service.DuplicateInput{
		TimeblockID: source.ID,
		TargetDate:  "2026-09-02",
		TargetTime:  "16:00",
	})
	if err != nil {
		t.Fatalf("sequential duplicate: %v", err)
	}
	if second.Timeblock.ID == result.Timeblock.ID {
		t.Fatalf("expected a distinct clone per call")
	}
}

func TestSetSelectedDateValidates(t *testing.T) {
	store := newTestStore(t)
	if err := store.SetSelectedDate(context.Background(), "tomorrow-ish"); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
