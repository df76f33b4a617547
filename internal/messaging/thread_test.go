package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func TestGetThread(t *testing.T) {
	env := newTestEnv(t)
	root := env.send(t, env.alice, "root", nil)
	a := env.send(t, env.bob, "a", &root.ID)
	b := env.send(t, env.alice, "b", &root.ID)
	a1 := env.send(t, env.alice, "a1", &a.ID)
	a1x := env.send(t, env.bob, "a1x", &a1.ID)
	env.send(t, env.bob, "unrelated", nil)

	tree, err := env.svc.GetThread(context.Background(), actorOf(env.bob), root.ID)
	require.NoError(t, err)

	assert.Equal(t, root.ID, tree.Message.ID)
	require.Len(t, tree.Replies, 2)
	assert.Equal(t, a.ID, tree.Replies[0].Message.ID)
	assert.Equal(t, b.ID, tree.Replies[1].Message.ID)
	assert.NotNil(t, tree.Replies[1].Replies)
	assert.Empty(t, tree.Replies[1].Replies)
	require.Len(t, tree.Replies[0].Replies, 1)
	assert.Equal(t, a1.ID, tree.Replies[0].Replies[0].Message.ID)
	assert.Equal(t, a1x.ID, tree.Replies[0].Replies[0].Replies[0].Message.ID)
	assert.Equal(t, 4, tree.Depth())

	leaf, err := env.svc.GetThread(context.Background(), actorOf(env.alice), a1x.ID)
	require.NoError(t, err)
	assert.Empty(t, leaf.Replies)
	assert.Equal(t, 1, leaf.Depth())
}

func TestGetThreadRespectsDepthBound(t *testing.T) {
	env := newTestEnv(t, WithMaxThreadDepth(3))
	root := env.send(t, env.alice, "0", nil)
	parent := root
	for _, content := range []string{"1", "2"} {
		parent = env.send(t, env.bob, content, &parent.ID)
	}

	_, err := env.svc.GetThread(context.Background(), actorOf(env.alice), root.ID)
	require.NoError(t, err)

	env.send(t, env.alice, "3", &parent.ID)
	_, err = env.svc.GetThread(context.Background(), actorOf(env.alice), root.ID)
	assert.ErrorIs(t, err, ErrThreadTooDeep)
}

func TestGetThreadKeepsParentAfterCallerReuse(t *testing.T) {
	env := newTestEnv(t)
	root := env.send(t, env.alice, "root", nil)
	parentID := root.ID
	first := env.send(t, env.bob, "first", &parentID)
	parentID = first.ID
	second := env.send(t, env.alice, "second", &parentID)
	parentID = uuid.New()

	tree, err := env.svc.GetThread(context.Background(), actorOf(env.alice), root.ID)
	require.NoError(t, err)
	require.Len(t, tree.Replies, 1)
	assert.Equal(t, first.ID, tree.Replies[0].Message.ID)
	require.Len(t, tree.Replies[0].Replies, 1)
	assert.Equal(t, second.ID, tree.Replies[0].Replies[0].Message.ID)
	assert.Equal(t, 3, tree.Depth())
}

func TestBuildThreadOrdersTiesByID(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	root := models.Message{ID: uuid.New(), CreatedAt: at}
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")
	replies := []models.Message{
		{ID: high, ParentID: &root.ID, CreatedAt: at.Add(time.Second)},
		{ID: low, ParentID: &root.ID, CreatedAt: at.Add(time.Second)},
	}

	tree, err := BuildThread(root, replies, 0)
	require.NoError(t, err)
	require.Len(t, tree.Replies, 2)
	assert.Equal(t, low, tree.Replies[0].Message.ID)
	assert.Equal(t, high, tree.Replies[1].Message.ID)
}

func TestBuildThreadDetectsCycle(t *testing.T) {
	rootID := uuid.New()
	childID := uuid.New()
	root := models.Message{ID: rootID, ParentID: &childID}
	descendants := []models.Message{
		{ID: childID, ParentID: &rootID},
		root,
	}

	_, err := BuildThread(root, descendants, 10)
	assert.ErrorIs(t, err, ErrThreadCycle)
}
