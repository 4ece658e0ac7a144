package core

import (
	"context"

	"eino_voice_shop/pkg"
)

// Node represents a single processing unit in the turn graph
type Node interface {
	Execute(ctx context.Context, state *TurnState) (NodeOutput, error)
	GetName() string
	GetType() NodeType
}

// NodeType defines the different types of nodes in the graph
type NodeType string

const (
	NodeTypeCommerce NodeType = "commerce"
	NodeTypeResponse NodeType = "response"
	NodeTypeMemory   NodeType = "memory"
	NodeTypeFormat   NodeType = "format"
)

// Node names used by the default flow
const (
	NodeCommerce = "commerce"
	NodeResponse = "response"
	NodeMemory   = "memory"
	NodeList     = "list"
	NodeSpeech   = "speech"
	NodeComplete = "complete"
)

// TurnState is the working copy of one turn. Nodes read and write it in
// flow order; nothing else touches it while the turn runs.
type TurnState struct {
	TurnID       string
	SessionID    string
	Utterance    string
	SystemPrompt string
	History      []pkg.ConversationMessage
	Memory       pkg.Memory

	Intent pkg.Intent
	// ResponsePrefix accumulates side-effect summaries ahead of the reply
	ResponsePrefix string
	Reply          string
	ResponseText   string

	ProductSearchResults []pkg.ProductMatch
	CartResults          []pkg.CartResult
	CartCleared          bool
	ClearAttempted       bool

	// Metadata carries node data keyed by name for edge conditions
	Metadata map[string]any
	Warnings []string
}

// NewTurnState seeds a state from the caller's input. Memory is cloned so
// the caller's snapshot is never mutated.
func NewTurnState(turnID string, input pkg.TurnInput) *TurnState {
	return &TurnState{
		TurnID:       turnID,
		SessionID:    input.SessionID,
		Utterance:    input.Utterance,
		SystemPrompt: input.SystemPrompt,
		History:      input.History,
		Memory:       input.Memory.Clone(),
		Intent:       pkg.Intent{Kind: pkg.IntentNone},
		Metadata:     make(map[string]any),
	}
}

// NodeOutput contains the output data from a node
type NodeOutput struct {
	Data     map[string]any `json:"data"`
	NextNode string         `json:"next_node,omitempty"`
	// Error is a non-fatal stage failure; it is recorded as a warning
	Error    error `json:"error,omitempty"`
	Complete bool  `json:"complete"`
}

// GraphProcessor orchestrates the execution of nodes in a graph flow
type GraphProcessor interface {
	Execute(ctx context.Context, state *TurnState) (*ProcessorOutput, error)
	AddNode(node Node) error
	GetNode(name string) (Node, error)
	SetFlow(flow GraphFlow) error
}

// ProcessorOutput summarises one graph run
type ProcessorOutput struct {
	ExecutionPath  []string `json:"execution_path"`
	Warnings       []string `json:"warnings,omitempty"`
	ProcessingTime int64    `json:"processing_time_ms"`
}

// GraphFlow defines the execution flow between nodes
type GraphFlow struct {
	StartNode string                 `json:"start_node"`
	Edges     map[string][]GraphEdge `json:"edges"` // node_name -> possible next nodes
}

// GraphEdge represents a connection between two nodes with conditions
type GraphEdge struct {
	To        string         `json:"to"`
	Condition map[string]any `json:"condition,omitempty"`
	Priority  int            `json:"priority"`
}

// DefaultFlow is commerce → response → memory → [list] → speech
func DefaultFlow() GraphFlow {
	return GraphFlow{
		StartNode: NodeCommerce,
		Edges: map[string][]GraphEdge{
			NodeCommerce: {{To: NodeResponse}},
			NodeResponse: {{To: NodeMemory}},
			NodeMemory: {
				{To: NodeList, Condition: map[string]any{"show_list": true}, Priority: 1},
				{To: NodeSpeech, Priority: 2},
			},
			NodeList:   {{To: NodeSpeech}},
			NodeSpeech: {{To: NodeComplete}},
		},
	}
}
