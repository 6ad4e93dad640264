package service

import (
	"context"
	"time"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/model"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/repository"
)

// ExportUser identifies the snapshot's owner.
type ExportUser struct {
	ID      string         `json:"id"`
	Email   string         `json:"email"`
	Profile *model.Profile `json:"profile"`
}

// ExportDocument is the full downloadable snapshot of one user's data.
type ExportDocument struct {
	ExportedAt time.Time         `json:"exported_at"`
	User       ExportUser        `json:"user"`
	Categories []model.Category  `json:"categories"`
	Timeblocks []model.Timeblock `json:"timeblocks"`
	Tasks      []model.Task      `json:"tasks"`
}

// ExportService assembles a point-in-time snapshot of everything a user
// owns. The four reads are not transactionally isolated; a write landing
// between them can leave a dangling reference in the document. That
// read-committed, non-atomic level is the operation's documented guarantee.
type ExportService struct {
	repos *repository.Registry
}

func NewExportService(repos *repository.Registry) *ExportService {
	return &ExportService{repos: repos}
}

// Export gathers the caller's profile, categories (archived included),
// timeblocks and tasks with no date filtering.
func (s *ExportService) Export(ctx context.Context, userID, email string) (*ExportDocument, error) {
	profile, err := s.repos.Profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	categories, err := s.repos.Categories.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	timeblocks, err := s.repos.Timeblocks.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repos.Tasks.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ExportDocument{
		ExportedAt: time.Now().UTC(),
		User:       ExportUser{ID: userID, Email: email, Profile: profile},
		Categories: categories,
		Timeblocks: timeblocks,
		Tasks:      tasks,
	}, nil
}
