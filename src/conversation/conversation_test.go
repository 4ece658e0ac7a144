package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"eino_voice_shop/pkg"
	"eino_voice_shop/src/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHistoryFiltersAndTrims(t *testing.T) {
	var msgs []pkg.ConversationMessage
	msgs = append(msgs, pkg.ConversationMessage{Role: "system", Content: "be nice"})
	for i := 0; i < 30; i++ {
		role := "user"
		if i%2 == 1 {
			role = "model"
		}
		msgs = append(msgs, pkg.ConversationMessage{Role: role, Content: fmt.Sprintf("m%d", i)})
	}

	history := NewChatHistoryStrategy(20).BuildHistory(msgs)

	require.Len(t, history, 20)
	assert.Equal(t, "m10", history[0].Content)
	assert.Equal(t, "m29", history[19].Content)
	for _, m := range history {
		assert.NotEqual(t, schema.System, m.Role)
	}
	assert.Equal(t, schema.Assistant, history[19].Role)
}

func TestBuildHistoryDropsSystemBeforeTrimming(t *testing.T) {
	msgs := []pkg.ConversationMessage{
		{Role: "user", Content: "hi"},
		{Role: "system", Content: "s1"},
		{Role: "assistant", Content: "hello"},
		{Role: "system", Content: "s2"},
	}

	history := NewChatHistoryStrategy(2).BuildHistory(msgs)

	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, "hello", history[1].Content)
}

func TestServiceWithRedisRepository(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewRedisRepository(storage.NewRedisStorageFromClient(client, ""), time.Hour)
	svc := NewService(repo)

	fresh, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, fresh.Messages)

	result := &pkg.TurnResult{
		ResponseText: "Added milk.",
		Success:      true,
		Memory:       pkg.Memory{Lists: pkg.Lists{Shopping: []string{"milk"}}},
	}
	require.NoError(t, svc.RecordTurn(ctx, "s1", "add milk to cart", result))
	assert.True(t, mr.Exists("conversation:s1"))

	state, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []pkg.ConversationMessage{
		{Role: "user", Content: "add milk to cart"},
		{Role: "assistant", Content: "Added milk."},
	}, state.Messages)
	assert.Equal(t, []string{"milk"}, state.Memory.Lists.Shopping)

	// a failed turn keeps the previous memory
	failed := &pkg.TurnResult{ResponseText: "sorry", Success: false}
	require.NoError(t, svc.RecordTurn(ctx, "s1", "hello", failed))
	state, err = svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"milk"}, state.Memory.Lists.Shopping)
	assert.Len(t, state.Messages, 4)

	require.NoError(t, svc.Reset(ctx, "s1"))
	assert.False(t, mr.Exists("conversation:s1"))
}
