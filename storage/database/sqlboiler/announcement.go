package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/announcement"
)

const announcementColumns = `id, title, body, priority, created_at, updated_at`

type announcementRow struct {
	ID        string    `boil:"id"`
	Title     string    `boil:"title"`
	Body      string    `boil:"body"`
	Priority  string    `boil:"priority"`
	CreatedAt time.Time `boil:"created_at"`
	UpdatedAt time.Time `boil:"updated_at"`
}

func (row announcementRow) unboil() announcement.Announcement {
	return announcement.Announcement{
		ID:        row.ID,
		Title:     row.Title,
		Body:      row.Body,
		Priority:  announcement.Priority(row.Priority),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

type announcementRepository struct {
	repository
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(exec core.DBExecutor) *announcementRepository {
	return &announcementRepository{repository{exec: exec}}
}

func (repo announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	q := "INSERT INTO announcement (" + announcementColumns + ") VALUES ($1, $2, $3, $4, $5, $6)"
	_, err := queries.Raw(q, a.ID, a.Title, a.Body, string(a.Priority), a.CreatedAt.UTC(), a.UpdatedAt.UTC()).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return a, nil
}

func (repo announcementRepository) GetAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) (announcement.Announcement, error) {
	if !isUUID(id) {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	var row announcementRow
	q := "SELECT " + announcementColumns + " FROM announcement WHERE id = $1"
	if err := queries.Raw(q, id).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return announcement.Announcement{}, trapNoRowsErr(err, announcement.ErrNotFound, "finding announcement")
	}
	return row.unboil(), nil
}

func (repo announcementRepository) ListAnnouncements(ctx context.Context, limit int, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	q := "SELECT " + announcementColumns + " FROM announcement ORDER BY created_at DESC"
	var args []interface{}
	if limit > 0 {
		q += " LIMIT $1"
		args = append(args, limit)
	}

	var rows []announcementRow
	if err := queries.Raw(q, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing announcements")
	}
	list := make([]announcement.Announcement, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.unboil())
	}
	return list, nil
}

func (repo announcementRepository) UpdateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	q := "UPDATE announcement SET title = $2, body = $3, priority = $4, updated_at = $5 WHERE id = $1"
	res, err := queries.Raw(q, a.ID, a.Title, a.Body, string(a.Priority), a.UpdatedAt.UTC()).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "updating announcement")
	}
	n, err := affected(res, "updating announcement")
	if err == nil && n == 0 {
		err = announcement.ErrNotFound
	}
	if err != nil {
		return announcement.Announcement{}, err
	}
	return a, nil
}

func (repo announcementRepository) DeleteAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return announcement.ErrNotFound
	}
	res, err := queries.Raw("DELETE FROM announcement WHERE id = $1", id).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	n, err := affected(res, "deleting announcement")
	if err == nil && n == 0 {
		err = announcement.ErrNotFound
	}
	return err
}
