package announcement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core/announcement"
	inmemdb "github.com/trezcool/agape/storage/database/inmem"
	"github.com/trezcool/agape/testutil"
)

func Test_service(t *testing.T) {
	validate, _ := testutil.NewValidator(testutil.Config())
	svc := announcement.NewService(inmemdb.NewAnnouncementRepository(inmemdb.Open()), validate)
	ctx := context.Background()

	orig := announcement.NowFunc
	t.Cleanup(func() { announcement.NowFunc = orig })
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	announcement.NowFunc = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}

	tests := []struct {
		name    string
		na      announcement.NewAnnouncement
		want    announcement.Priority
		wantErr bool
	}{
		{name: "general by default", na: announcement.NewAnnouncement{Title: "Reunião de pais", Body: "Sexta às 19h"}, want: announcement.PriorityGeneral},
		{name: "urgent", na: announcement.NewAnnouncement{Title: "Aula suspensa", Body: "Amanhã", Priority: " URGENT "}, want: announcement.PriorityUrgent},
		{name: "unknown priority", na: announcement.NewAnnouncement{Title: "x", Body: "y", Priority: "low"}, wantErr: true},
		{name: "blank title", na: announcement.NewAnnouncement{Title: "  ", Body: "y"}, wantErr: true},
		{name: "no body", na: announcement.NewAnnouncement{Title: "x"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Create(ctx, tt.na)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Priority)
		})
	}

	all, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Aula suspensa", all[0].Title)

	latest, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)

	edited, err := svc.Update(ctx, all[1], announcement.NewAnnouncement{Title: "Reunião de pais", Body: "Sábado às 10h"})
	require.NoError(t, err)
	assert.Equal(t, "Sábado às 10h", edited.Body)
	assert.True(t, edited.UpdatedAt.After(edited.CreatedAt))

	require.NoError(t, svc.Delete(ctx, edited.ID))
	_, err = svc.Get(ctx, edited.ID)
	assert.Equal(t, announcement.ErrNotFound, err)
}
