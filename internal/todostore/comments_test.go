package todostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndListComments(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, EnsureCommentSchema(ctx, db))

	task, err := s.AddTask(ctx, db, "agent-1", Task{Title: "t"})
	require.NoError(t, err)

	_, err = s.AddComment(ctx, db, "agent-1", task.ID, "looks good")
	require.NoError(t, err)

	comments, err := ListComments(ctx, db, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, "looks good", comments[0].Body)
}

func TestEditTaskPartialUpdate(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	task, err := s.AddTask(ctx, db, "agent-1", Task{Title: "old title"})
	require.NoError(t, err)

	newTitle := "new title"
	require.NoError(t, s.EditTask(ctx, db, "agent-1", task.ID, EditFields{Title: &newTitle}))

	got, err := GetTask(ctx, db, task.ID)
	require.NoError(t, err)
	require.Equal(t, "new title", got.Title)
}

func TestCategoriesReturnsDistinctSortedTags(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTask(ctx, db, "agent-1", Task{Title: "a", Tags: []string{"b", "a"}})
	require.NoError(t, err)
	_, err = s.AddTask(ctx, db, "agent-1", Task{Title: "b", Tags: []string{"c"}})
	require.NoError(t, err)

	cats, err := Categories(ctx, db)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, cats)
}
