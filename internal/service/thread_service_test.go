package service

import (
	"context"
	"testing"

	"github.com/nocson47/beaconofknowledge/internal/authz"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threadFixture() (*ThreadService, *threadRepoStub, *auditRepoStub) {
	users := newUserRepoStub(member(1), member(2), admin(3))
	threads := newThreadRepoStub(
		&models.Thread{ID: 1, UserID: 1, Title: "Intro to Go", Body: "channels", Tags: []string{"go"}},
		&models.Thread{ID: 2, UserID: 2, Title: "Deleted", Body: "gone", IsDeleted: true},
		&models.Thread{ID: 3, UserID: 2, Title: "Rust vs Go", Body: "borrowing", Tags: []string{"rust"}},
	)
	audit := &auditRepoStub{}
	return NewThreadService(threads, users, NewAuditService(audit, nil, users)), threads, audit
}

func TestThreadService_ListHidesDeletedForEveryone(t *testing.T) {
	svc, _, _ := threadFixture()

	threads, err := svc.ListThreads(context.Background(), ListThreadsInput{})
	require.NoError(t, err)
	ids := make([]uint, len(threads))
	for i, th := range threads {
		ids[i] = th.ID
	}
	assert.Equal(t, []uint{3, 1}, ids)
}

func TestThreadService_ListAsksForLiveRowsOnly(t *testing.T) {
	svc, threads, _ := threadFixture()
	var seen []repository.ThreadFilter
	threads.listFn = func(_ context.Context, f repository.ThreadFilter) ([]*models.Thread, error) {
		seen = append(seen, f)
		return nil, nil
	}
	ctx := context.Background()

	_, err := svc.ListThreads(ctx, ListThreadsInput{AuthorID: 2, Tag: " Go "})
	require.NoError(t, err)
	_, err = svc.SearchThreads(ctx, "rust", 0)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].VisibleOnly)
	assert.Equal(t, "go", seen[0].Tag)
	assert.True(t, seen[1].VisibleOnly)

	_, err = svc.ListThreads(ctx, ListThreadsInput{Tag: "%"})
	assertAppCode(t, err, models.CodeValidation)
	assert.Len(t, seen, 2, "a bad tag never reaches the repository")
}

func TestThreadService_GetDeletedIsNotFound(t *testing.T) {
	svc, _, _ := threadFixture()
	_, err := svc.GetThread(context.Background(), 2)
	assertAppCode(t, err, models.CodeNotFound)

	view, err := svc.GetThreadView(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.True(t, view.Actions[authz.ActionEdit])
	assert.False(t, view.Actions[authz.ActionReport])

	anon, err := svc.GetThreadView(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.True(t, anon.Actions[authz.ActionView])
	assert.False(t, anon.Actions[authz.ActionVote])
}

func TestThreadService_Search(t *testing.T) {
	svc, _, _ := threadFixture()
	hits, err := svc.SearchThreads(context.Background(), "GO", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = svc.SearchThreads(context.Background(), "gone", 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "deleted threads are never searchable")

	_, err = svc.SearchThreads(context.Background(), "  ", 0)
	assertAppCode(t, err, models.CodeValidation)
}

func TestThreadService_Create(t *testing.T) {
	svc, _, _ := threadFixture()
	ctx := context.Background()

	_, err := svc.CreateThread(ctx, CreateThreadInput{Title: "t", Body: "b"})
	assertAppCode(t, err, models.CodeUnauthenticated)

	_, err = svc.CreateThread(ctx, CreateThreadInput{UserID: 1, Title: "", Body: "b"})
	assertAppCode(t, err, models.CodeValidation)

	th, err := svc.CreateThread(ctx, CreateThreadInput{UserID: 1, Title: " New ", Body: "b", Tags: []string{"Go", "go", "web"}})
	require.NoError(t, err)
	assert.Equal(t, "New", th.Title)
	assert.Equal(t, []string{"go", "web"}, th.Tags)
	assert.Equal(t, uint(1), th.UserID)
}

func TestThreadService_OwnershipRules(t *testing.T) {
	ctx := context.Background()
	title := "Edited"

	t.Run("non-owner cannot edit or delete", func(t *testing.T) {
		svc, repo, _ := threadFixture()
		_, err := svc.UpdateThread(ctx, UpdateThreadInput{UserID: 2, ThreadID: 1, Title: &title})
		assertAppCode(t, err, models.CodeForbidden)
		assertAppCode(t, svc.DeleteThread(ctx, 2, 1), models.CodeForbidden)
		assert.Empty(t, repo.updated)
		assert.Empty(t, repo.deleted)
	})

	t.Run("anonymous is unauthenticated", func(t *testing.T) {
		svc, _, _ := threadFixture()
		assertAppCode(t, svc.DeleteThread(ctx, 0, 1), models.CodeUnauthenticated)
	})

	t.Run("owner edits, admin deletes with audit", func(t *testing.T) {
		svc, repo, audit := threadFixture()
		th, err := svc.UpdateThread(ctx, UpdateThreadInput{UserID: 1, ThreadID: 1, Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Edited", th.Title)
		assert.Equal(t, uint(1), th.UserID)

		require.NoError(t, svc.DeleteThread(ctx, 3, 1))
		assert.Equal(t, []uint{1}, repo.deleted)
		assert.Equal(t, []string{"thread_deleted"}, audit.actions())
	})

	t.Run("deleted thread cannot be edited", func(t *testing.T) {
		svc, _, _ := threadFixture()
		_, err := svc.UpdateThread(ctx, UpdateThreadInput{UserID: 3, ThreadID: 2, Title: &title})
		assertAppCode(t, err, models.CodeNotFound)
	})
}
