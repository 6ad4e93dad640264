package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/apperr"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/model"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := NewDB(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewRegistry(db)
}

func newTestUser(t *testing.T, repos *Registry, id string) string {
	t.Helper()
	profile, err := repos.Profiles.Ensure(context.Background(), id, id+"@example.com")
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	return profile.ID
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestEnsureProfileSeedsDefaults(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()

	profile, err := repos.Profiles.Ensure(ctx, "user-1", "user-1@example.com")
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if profile.Preferences.DefaultDurationMinutes != 60 {
		t.Fatalf("expected default duration 60, got %d", profile.Preferences.DefaultDurationMinutes)
	}

	categories, err := repos.Categories.ListActive(ctx, "user-1")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 4 {
		t.Fatalf("expected 4 seeded categories, got %d", len(categories))
	}
	if categories[0].Name != "Work" {
		t.Fatalf("expected Work first by sort order, got %q", categories[0].Name)
	}

	// Second touch is a plain lookup, not another seed.
	if _, err := repos.Profiles.Ensure(ctx, "user-1", "user-1@example.com"); err != nil {
		t.Fatalf("re-ensure profile: %v", err)
	}
	categories, _ = repos.Categories.ListActive(ctx, "user-1")
	if len(categories) != 4 {
		t.Fatalf("expected 4 categories after re-ensure, got %d", len(categories))
	}
}

func TestCreateTimeblockDerivesEndTime(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	block, err := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
		Title:           strPtr("Deep work"),
		Date:            "2026-09-01",
		StartTime:       "09:00",
		DurationMinutes: 90,
	})
	if err != nil {
		t.Fatalf("create timeblock: %v", err)
	}
	if block.EndTime != "10:30" {
		t.Fatalf("expected end time 10:30, got %q", block.EndTime)
	}
	if block.Status != model.StatusScheduled {
		t.Fatalf("expected status scheduled, got %q", block.Status)
	}
}

func TestCreateTimeblockRejectsBadDuration(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	for _, minutes := range []int{0, 10, 37, 1455} {
		_, err := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
			Date:            "2026-09-01",
			StartTime:       "09:00",
			DurationMinutes: minutes,
		})
		if !apperr.Is(err, apperr.CodeValidation) {
			t.Fatalf("duration %d: expected validation error, got %v", minutes, err)
		}
	}
}

func TestCreateTimeblockRejectsUnknownCategory(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	_, err := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
		CategoryID:      strPtr("no-such-category"),
		Date:            "2026-09-01",
		StartTime:       "09:00",
		DurationMinutes: 30,
	})
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFetchForDateOrdersAndComposesRelations(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	categories, _ := repos.Categories.ListActive(ctx, userID)
	catID := categories[0].ID

	late, err := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
		Date: "2026-09-01", StartTime: "14:00", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create late block: %v", err)
	}
	early, err := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
		CategoryID: &catID,
		Date:       "2026-09-01", StartTime: "09:00", DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create early block: %v", err)
	}
	if _, err := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
		Date: "2026-09-02", StartTime: "09:00", DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("create other-day block: %v", err)
	}
	if _, err := repos.Tasks.Create(ctx, userID, TaskInput{
		TimeblockID: &early.ID, Title: "Prep notes",
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	blocks, err := repos.Timeblocks.FetchForDate(ctx, userID, "2026-09-01")
	if err != nil {
		t.Fatalf("fetch for date: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks on 2026-09-01, got %d", len(blocks))
	}
	if blocks[0].ID != early.ID || blocks[1].ID != late.ID {
		t.Fatalf("expected start-time ordering, got %s then %s", blocks[0].StartTime, blocks[1].StartTime)
	}
	if blocks[0].Category == nil || blocks[0].Category.ID != catID {
		t.Fatalf("expected first block composed with its category")
	}
	if len(blocks[0].Tasks) != 1 || blocks[0].Tasks[0].Title != "Prep notes" {
		t.Fatalf("expected first block to carry its task, got %v", blocks[0].Tasks)
	}
	if len(blocks[1].Tasks) != 0 {
		t.Fatalf("expected second block with no tasks, got %d", len(blocks[1].Tasks))
	}
}

func TestUpdateTimeblockRecomputesEndTime(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	block, err := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
		Date: "2026-09-01", StartTime: "09:00", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := repos.Timeblocks.Update(ctx, userID, block.ID, TimeblockUpdate{
		StartTime: strPtr("11:00"),
	})
	if err != nil {
		t.Fatalf("update start: %v", err)
	}
	if updated.EndTime != "12:00" {
		t.Fatalf("expected end 12:00 after moving start, got %q", updated.EndTime)
	}

	updated, err = repos.Timeblocks.Update(ctx, userID, block.ID, TimeblockUpdate{
		DurationMinutes: intPtr(90),
	})
	if err != nil {
		t.Fatalf("update duration: %v", err)
	}
	if updated.EndTime != "12:30" {
		t.Fatalf("expected end 12:30 after growing duration, got %q", updated.EndTime)
	}
	if updated.DurationMinutes != 90 {
		t.Fatalf("expected duration 90, got %d", updated.DurationMinutes)
	}
}

func TestDeleteTimeblockDetachesTasks(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	block, err := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
		Date: "2026-09-01", StartTime: "09:00", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	task, err := repos.Tasks.Create(ctx, userID, TaskInput{
		TimeblockID: &block.ID, Title: "Survivor",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := repos.Timeblocks.Delete(ctx, userID, block.ID); err != nil {
		t.Fatalf("delete block: %v", err)
	}

	reloaded, err := repos.Tasks.FindByID(ctx, userID, task.ID)
	if err != nil {
		t.Fatalf("task should survive block deletion: %v", err)
	}
	if reloaded.TimeblockID != nil {
		t.Fatalf("expected task detached to backlog, still points at %s", *reloaded.TimeblockID)
	}

	backlog, err := repos.Tasks.FetchBacklog(ctx, userID)
	if err != nil {
		t.Fatalf("fetch backlog: %v", err)
	}
	if len(backlog) != 1 || backlog[0].ID != task.ID {
		t.Fatalf("expected detached task in backlog, got %v", backlog)
	}
}

func TestBacklogExcludesAttachedAndCompleted(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	block, _ := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
		Date: "2026-09-01", StartTime: "09:00", DurationMinutes: 60,
	})
	if _, err := repos.Tasks.Create(ctx, userID, TaskInput{TimeblockID: &block.ID, Title: "Attached"}); err != nil {
		t.Fatalf("create attached: %v", err)
	}
	first, err := repos.Tasks.Create(ctx, userID, TaskInput{Title: "Loose one"})
	if err != nil {
		t.Fatalf("create loose: %v", err)
	}
	done, err := repos.Tasks.Create(ctx, userID, TaskInput{Title: "Done one"})
	if err != nil {
		t.Fatalf("create done: %v", err)
	}
	if _, err := repos.Tasks.ToggleComplete(ctx, userID, done.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	backlog, err := repos.Tasks.FetchBacklog(ctx, userID)
	if err != nil {
		t.Fatalf("fetch backlog: %v", err)
	}
	if len(backlog) != 1 || backlog[0].ID != first.ID {
		t.Fatalf("expected only the loose incomplete task, got %d entries", len(backlog))
	}
}

func TestToggleCompleteSetsAndClearsTimestamp(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	task, err := repos.Tasks.Create(ctx, userID, TaskInput{Title: "Flip me"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := repos.Tasks.ToggleComplete(ctx, userID, task.ID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !first.IsCompleted {
		t.Fatalf("expected completed after first toggle")
	}
	if first.CompletedAt == nil {
		t.Fatalf("expected completed_at set on completion")
	}
	if time.Since(*first.CompletedAt) > time.Minute {
		t.Fatalf("completed_at looks stale: %v", first.CompletedAt)
	}

	second, err := repos.Tasks.ToggleComplete(ctx, userID, task.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if second.IsCompleted {
		t.Fatalf("expected incomplete after second toggle")
	}
	if second.CompletedAt != nil {
		t.Fatalf("expected completed_at cleared, got %v", second.CompletedAt)
	}
}

func TestTaskValidation(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	if _, err := repos.Tasks.Create(ctx, userID, TaskInput{Title: "   "}); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error for blank title, got %v", err)
	}
	if _, err := repos.Tasks.Create(ctx, userID, TaskInput{Title: strings.Repeat("x", 101)}); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error for long title, got %v", err)
	}
	if _, err := repos.Tasks.Create(ctx, userID, TaskInput{Title: "ok", Priority: "urgent"}); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error for unknown priority, got %v", err)
	}
	if _, err := repos.Tasks.Create(ctx, userID, TaskInput{Title: "ok", TimeblockID: strPtr("missing")}); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error for unknown timeblock, got %v", err)
	}
}

func TestOwnershipScoping(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	alice := newTestUser(t, repos, "alice")
	mallory := newTestUser(t, repos, "mallory")

	block, err := repos.Timeblocks.Create(ctx, alice, TimeblockInput{
		Date: "2026-09-01", StartTime: "09:00", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repos.Timeblocks.FindByID(ctx, mallory, block.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not found for foreign block, got %v", err)
	}
	if err := repos.Timeblocks.Delete(ctx, mallory, block.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not found deleting foreign block, got %v", err)
	}
	if _, err := repos.Timeblocks.FindByID(ctx, alice, block.ID); err != nil {
		t.Fatalf("owner should still see the block: %v", err)
	}
}

func TestCategoryArchiveHidesButKeepsReferences(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	categories, _ := repos.Categories.ListActive(ctx, userID)
	victim := categories[0]

	block, err := repos.Timeblocks.Create(ctx, userID, TimeblockInput{
		CategoryID: &victim.ID,
		Date:       "2026-09-01", StartTime: "09:00", DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}

	if err := repos.Categories.Archive(ctx, userID, victim.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	active, _ := repos.Categories.ListActive(ctx, userID)
	for _, c := range active {
		if c.ID == victim.ID {
			t.Fatalf("archived category still listed active")
		}
	}

	// The block still resolves: archive is not a delete.
	reloaded, err := repos.Timeblocks.FindByID(ctx, userID, block.ID)
	if err != nil {
		t.Fatalf("reload block: %v", err)
	}
	if reloaded.CategoryID == nil || *reloaded.CategoryID != victim.ID {
		t.Fatalf("expected category reference preserved after archive")
	}
	if reloaded.Category == nil {
		t.Fatalf("expected archived category still resolvable on the read model")
	}
}

func TestCategoryUpdatePartialFields(t *testing.T) {
	repos := newTestRegistry(t)
	ctx := context.Background()
	userID := newTestUser(t, repos, "user-1")

	created, err := repos.Categories.Create(ctx, userID, CategoryInput{Name: "Reading", Color: "#F1C40F"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.SortOrder != 4 {
		t.Fatalf("expected new category appended after the 4 seeds, got sort order %d", created.SortOrder)
	}

	updated, err := repos.Categories.Update(ctx, userID, created.ID, CategoryUpdate{Color: strPtr("#E67E22")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Color != "#E67E22" {
		t.Fatalf("expected color updated, got %q", updated.Color)
	}
	if updated.Name != "Reading" {
		t.Fatalf("expected name untouched, got %q", updated.Name)
	}

	longName := strings.Repeat("n", model.MaxCategoryNameLen+1)
	if _, err := repos.Categories.Create(ctx, userID, CategoryInput{Name: longName}); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error for long name, got %v", err)
	}
}
