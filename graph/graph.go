// Package graph provides a small typed state machine: named nodes pass a
// state value along edges, condition nodes pick the next node through a
// dispatch table, and a per-node visit budget guards against routing loops.
package graph

import (
	"context"
	"fmt"

	dterrors "github.com/datatalk-ai/datatalk/errors"
)

// NodeType distinguishes task nodes from condition nodes.
type NodeType string

const (
	NodeTypeTask      NodeType = "task"
	NodeTypeCondition NodeType = "condition"
)

// End is the reserved node name that terminates execution.
const End = "__end__"

// DefaultMaxVisits bounds how many times a single node may run in one
// Execute call before the machine gives up.
const DefaultMaxVisits = 10

// NodeFunc is the function executed by a task node.
type NodeFunc[S any] func(context.Context, S) (S, error)

// ConditionFunc evaluates the state and returns a routing key looked up in
// the node's NextMap.
type ConditionFunc[S any] func(context.Context, S) (string, error)

// Node is one vertex of the state machine.
type Node[S any] struct {
	Name      string
	Type      NodeType
	Execute   NodeFunc[S]       // Only for task nodes
	Condition ConditionFunc[S]  // Only for condition nodes
	Next      string            // Outgoing edge for task nodes; empty means End
	NextMap   map[string]string // For condition nodes: routing key -> next node
}

// Graph holds the nodes, the start node, and the visit budget.
type Graph[S any] struct {
	nodes     map[string]*Node[S]
	startNode string
	maxVisits int
}

// New returns an empty graph with the default visit budget.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:     make(map[string]*Node[S]),
		maxVisits: DefaultMaxVisits,
	}
}

func (g *Graph[S]) validateNode(node *Node[S]) {
	if node.Name == "" {
		panic("node name cannot be empty")
	}
	if node.Name == End {
		panic(fmt.Sprintf("node name %s is reserved", End))
	}

	switch node.Type {
	case NodeTypeCondition:
		if node.Condition == nil {
			panic(fmt.Sprintf("condition node %s must have non-nil Condition function", node.Name))
		}
	default:
		if node.Execute == nil {
			panic(fmt.Sprintf("node %s of type %s must have non-nil Execute function", node.Name, node.Type))
		}
	}
}

// AddNode installs a node, panicking on duplicates or invalid shapes.
func (g *Graph[S]) AddNode(node *Node[S]) {
	if _, exists := g.nodes[node.Name]; exists {
		panic(fmt.Sprintf("node %s already exists", node.Name))
	}

	g.validateNode(node)

	g.nodes[node.Name] = node
}

// SetStartNode picks the node Execute begins at.
func (g *Graph[S]) SetStartNode(name string) {
	if _, exists := g.nodes[name]; !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	g.startNode = name
}

// GetNode looks up a node by name.
func (g *Graph[S]) GetNode(name string) (*Node[S], error) {
	node, exists := g.nodes[name]
	if !exists {
		return nil, fmt.Errorf("node %s not found", name)
	}
	return node, nil
}

// SetMaxVisits overrides the per-node visit budget; non-positive values
// are ignored.
func (g *Graph[S]) SetMaxVisits(maxVisits int) {
	if maxVisits > 0 {
		g.maxVisits = maxVisits
	}
}

// MaxVisits returns the per-node visit budget.
func (g *Graph[S]) MaxVisits() int {
	return g.maxVisits
}

// Execute runs the graph starting from the configured start node, walking one
// node at a time until an edge leads to End. Each step threads the state value
// through the node, so there is never more than one active writer.
//
// When any node exceeds the visit budget, Execute returns the state as it was
// at that point together with an error wrapping errors.ErrMaxHops; callers can
// recover by inspecting the returned state.
func (g *Graph[S]) Execute(ctx context.Context, initialState S) (S, error) {
	state := initialState
	if g.startNode == "" {
		return state, fmt.Errorf("start node not set")
	}

	visited := make(map[string]int)
	current := g.startNode

	for current != End {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, exists := g.nodes[current]
		if !exists {
			return state, fmt.Errorf("node %s not found", current)
		}

		visited[current]++
		if visited[current] > g.maxVisits {
			return state, fmt.Errorf("node %s visited %d times: %w", current, visited[current], dterrors.ErrMaxHops)
		}

		next, newState, err := g.step(ctx, node, state)
		if err != nil {
			return state, err
		}
		state = newState
		current = next
	}

	return state, nil
}

func (g *Graph[S]) step(ctx context.Context, node *Node[S], state S) (string, S, error) {
	switch node.Type {
	case NodeTypeCondition:
		key, err := node.Condition(ctx, state)
		if err != nil {
			return "", state, fmt.Errorf("error evaluating condition at node %s: %w", node.Name, err)
		}
		next, ok := node.NextMap[key]
		if !ok {
			return "", state, fmt.Errorf("no next node mapped for key %q at node %s", key, node.Name)
		}
		return next, state, nil
	default:
		newState, err := node.Execute(ctx, state)
		if err != nil {
			return "", state, fmt.Errorf("error executing node %s: %w", node.Name, err)
		}
		next := node.Next
		if next == "" {
			next = End
		}
		return next, newState, nil
	}
}

// Builder assembles a graph through chained calls.
type Builder[S any] struct {
	graph *Graph[S]
}

// NewBuilder starts a fresh graph build.
func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{
		graph: New[S](),
	}
}

// AddNode adds a task node.
func (b *Builder[S]) AddNode(name string, execute NodeFunc[S]) *Builder[S] {
	b.graph.AddNode(&Node[S]{
		Name:    name,
		Type:    NodeTypeTask,
		Execute: execute,
	})
	return b
}

// AddConditionNode adds a condition node with its dispatch table.
func (b *Builder[S]) AddConditionNode(name string, condition ConditionFunc[S], nextMap map[string]string) *Builder[S] {
	b.graph.AddNode(&Node[S]{
		Name:      name,
		Type:      NodeTypeCondition,
		Condition: condition,
		NextMap:   nextMap,
	})
	return b
}

// AddEdge connects a task node to its successor.
func (b *Builder[S]) AddEdge(from, to string) *Builder[S] {
	node, exists := b.graph.nodes[from]
	if !exists {
		panic(fmt.Sprintf("node %s not found", from))
	}
	if node.Type == NodeTypeCondition {
		panic(fmt.Sprintf("node %s routes through its NextMap, not edges", from))
	}
	node.Next = to
	return b
}

// SetStart picks the start node.
func (b *Builder[S]) SetStart(name string) *Builder[S] {
	b.graph.SetStartNode(name)
	return b
}

// SetMaxVisits overrides the per-node visit budget.
func (b *Builder[S]) SetMaxVisits(maxVisits int) *Builder[S] {
	b.graph.SetMaxVisits(maxVisits)
	return b
}

// Build returns the finished graph.
func (b *Builder[S]) Build() *Graph[S] {
	return b.graph
}
