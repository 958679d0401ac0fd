package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

func TestNoticeService_ListActiveOrdering(t *testing.T) {
	repo := newMockNoticeRepo()
	svc := NewNoticeService(repo, nopLogger{}).(*noticeServiceImpl)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	create := func(title string, priority int, active bool) {
		_, err := svc.Create(ctx, NoticeInput{Title: &title, Content: &title, Priority: &priority, IsActive: &active})
		require.NoError(t, err)
	}
	create("old low", 0, true)
	create("hidden", 9, false)
	create("high", 5, true)
	create("new low", 0, true)

	notices, err := svc.ListActive(ctx)
	require.NoError(t, err)

	titles := make([]string, 0, len(notices))
	for _, n := range notices {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"high", "new low", "old low"}, titles)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestNoticeService_UpdateAndDelete(t *testing.T) {
	svc := NewNoticeService(newMockNoticeRepo(), nopLogger{})
	ctx := context.Background()

	title, content := "Deadline", "Submit by Friday"
	n, err := svc.Create(ctx, NoticeInput{Title: &title, Content: &content})
	require.NoError(t, err)
	assert.True(t, n.IsActive, "notices are active by default")

	off := false
	updated, err := svc.Update(ctx, n.ID, NoticeInput{IsActive: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Deadline", updated.Title)

	empty := " "
	_, err = svc.Update(ctx, n.ID, NoticeInput{Title: &empty})
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = svc.Update(ctx, 999, NoticeInput{})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, n.ID))
	assert.ErrorIs(t, svc.Delete(ctx, n.ID), entity.ErrNotFound)
}
