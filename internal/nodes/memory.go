package nodes

import (
	"context"

	"eino_voice_shop/internal/core"
	"eino_voice_shop/internal/memory"
)

// MemoryNode folds what the user said into the memory snapshot
type MemoryNode struct{}

func NewMemoryNode() *MemoryNode { return &MemoryNode{} }

func (m *MemoryNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	state.Memory = memory.Merge(state.Utterance, state.Reply, state.Memory)
	return core.NodeOutput{
		Data: map[string]any{"shopping_items": len(state.Memory.Lists.Shopping)},
	}, nil
}

func (m *MemoryNode) GetName() string { return core.NodeMemory }

func (m *MemoryNode) GetType() core.NodeType { return core.NodeTypeMemory }
