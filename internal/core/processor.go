package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"eino_voice_shop/src/logger"
)

// maxSteps guards against cyclic flows
const maxSteps = 32

// DefaultGraphProcessor implements the GraphProcessor interface
type DefaultGraphProcessor struct {
	nodes map[string]Node
	flow  GraphFlow
}

// NewGraphProcessor creates a new graph processor
func NewGraphProcessor(flow GraphFlow) *DefaultGraphProcessor {
	return &DefaultGraphProcessor{
		nodes: make(map[string]Node),
		flow:  flow,
	}
}

// Execute runs the graph flow over state. A Go error from a node aborts the
// run; NodeOutput.Error only adds a warning.
func (g *DefaultGraphProcessor) Execute(ctx context.Context, state *TurnState) (*ProcessorOutput, error) {
	startTime := time.Now()
	log := logger.Component("graph").With().Str("turn_id", state.TurnID).Logger()

	if state.Metadata == nil {
		state.Metadata = make(map[string]any)
	}

	currentNode := g.flow.StartNode
	output := &ProcessorOutput{}

	for currentNode != "" && currentNode != NodeComplete {
		if len(output.ExecutionPath) >= maxSteps {
			return output, fmt.Errorf("graph exceeded %d steps at node %s", maxSteps, currentNode)
		}
		if err := ctx.Err(); err != nil {
			return output, err
		}
		output.ExecutionPath = append(output.ExecutionPath, currentNode)

		node, exists := g.nodes[currentNode]
		if !exists {
			return output, fmt.Errorf("node not found: %s", currentNode)
		}

		nodeStart := time.Now()
		nodeOutput, err := node.Execute(ctx, state)
		if err != nil {
			log.Error().Err(err).Str("node", currentNode).Msg("Node failed")
			return output, fmt.Errorf("error executing node %s: %w", currentNode, err)
		}

		if nodeOutput.Error != nil {
			log.Warn().Err(nodeOutput.Error).Str("node", currentNode).Msg("Node degraded")
			warning := fmt.Sprintf("%s: %v", currentNode, nodeOutput.Error)
			output.Warnings = append(output.Warnings, warning)
			state.Warnings = append(state.Warnings, warning)
		}

		for key, value := range nodeOutput.Data {
			state.Metadata[key] = value
		}

		log.Debug().
			Str("node", currentNode).
			Int64("elapsed_ms", time.Since(nodeStart).Milliseconds()).
			Msg("Node executed")

		if nodeOutput.Complete {
			break
		}

		nextNode := nodeOutput.NextNode
		if nextNode == "" {
			nextNode = g.getNextNode(currentNode, nodeOutput, state)
		}
		currentNode = nextNode
	}

	output.ProcessingTime = time.Since(startTime).Milliseconds()
	log.Debug().
		Strs("path", output.ExecutionPath).
		Int64("elapsed_ms", output.ProcessingTime).
		Msg("Graph execution completed")

	return output, nil
}

// AddNode adds a node to the processor
func (g *DefaultGraphProcessor) AddNode(node Node) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}

	nodeName := node.GetName()
	if nodeName == "" {
		return fmt.Errorf("node name cannot be empty")
	}

	g.nodes[nodeName] = node
	return nil
}

// GetNode retrieves a node by name
func (g *DefaultGraphProcessor) GetNode(name string) (Node, error) {
	node, exists := g.nodes[name]
	if !exists {
		return nil, fmt.Errorf("node not found: %s", name)
	}
	return node, nil
}

// SetFlow sets the execution flow
func (g *DefaultGraphProcessor) SetFlow(flow GraphFlow) error {
	if flow.StartNode == "" {
		return fmt.Errorf("start node cannot be empty")
	}
	g.flow = flow
	return nil
}

// getNextNode picks the first edge, by priority, whose condition holds
func (g *DefaultGraphProcessor) getNextNode(currentNode string, nodeOutput NodeOutput, state *TurnState) string {
	edges, exists := g.flow.Edges[currentNode]
	if !exists || len(edges) == 0 {
		return NodeComplete
	}

	sorted := make([]GraphEdge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	for _, edge := range sorted {
		if evaluateCondition(edge.Condition, nodeOutput, state) {
			return edge.To
		}
	}

	return NodeComplete
}

// evaluateCondition checks every key against the node's own data first,
// then against what earlier nodes recorded in the turn metadata
func evaluateCondition(condition map[string]any, nodeOutput NodeOutput, state *TurnState) bool {
	for key, expected := range condition {
		actual, exists := nodeOutput.Data[key]
		if !exists {
			actual, exists = state.Metadata[key]
		}
		if !exists || actual != expected {
			return false
		}
	}
	return true
}
