package announcement

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
)

type Priority string

const (
	PriorityGeneral Priority = "general"
	PriorityUrgent  Priority = "urgent"
)

var (
	ErrNotFound = errors.New("announcement not found")

	NowFunc = time.Now // mockable
)

type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewAnnouncement is also used for updates: announcements are always edited as a whole.
type NewAnnouncement struct {
	Title    string   `json:"title" validate:"required,notblank,max=150"`
	Body     string   `json:"body" validate:"required,notblank"`
	Priority Priority `json:"priority" validate:"omitempty,oneof=general urgent"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Body = core.CleanString(na.Body)
	na.Priority = Priority(core.CleanString(string(na.Priority), true /* lower */))
	if na.Priority == "" {
		na.Priority = PriorityGeneral
	}
	return validate.Struct(na)
}

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		GetAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) (Announcement, error)
		// ListAnnouncements returns the newest announcements first; limit <= 0 means no limit.
		ListAnnouncements(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Announcement, error)
		UpdateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, na NewAnnouncement) (Announcement, error)
		Get(ctx context.Context, id string) (Announcement, error)
		List(ctx context.Context, limit int) ([]Announcement, error)
		Update(ctx context.Context, orig Announcement, na NewAnnouncement) (Announcement, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate) Service {
	return &service{repo: repo, validate: validate}
}

func (svc *service) Create(ctx context.Context, na NewAnnouncement) (Announcement, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Announcement{}, err
	}
	now := NowFunc().UTC()
	a, err := svc.repo.CreateAnnouncement(ctx, Announcement{
		Title:     na.Title,
		Body:      na.Body,
		Priority:  na.Priority,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return a, errors.Wrap(err, "creating announcement")
}

func (svc *service) Get(ctx context.Context, id string) (Announcement, error) {
	return svc.repo.GetAnnouncement(ctx, id)
}

func (svc *service) List(ctx context.Context, limit int) ([]Announcement, error) {
	as, err := svc.repo.ListAnnouncements(ctx, limit)
	return as, errors.Wrap(err, "listing announcements")
}

func (svc *service) Update(ctx context.Context, orig Announcement, na NewAnnouncement) (Announcement, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Announcement{}, err
	}
	a := orig
	a.Title = na.Title
	a.Body = na.Body
	a.Priority = na.Priority
	a.UpdatedAt = NowFunc().UTC()

	a, err := svc.repo.UpdateAnnouncement(ctx, a)
	return a, errors.Wrap(err, "updating announcement")
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteAnnouncement(ctx, id)
}
