// Package definition implements the Workflow Definition Loader (spec
// §4.8): DAG definitions parsed from a declarative YAML source, cached by
// workflow id, validated for acyclicity at load time.
package definition

import "fmt"

// Retry is a node's optional retry policy: up to MaxAttempts, with linear
// backoff attempt*BackoffMS between attempts (spec §4.9).
type Retry struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMS   int `yaml:"backoff_ms"`
}

// Node is one vertex of a workflow DAG.
type Node struct {
	ID        string                 `yaml:"id"`
	Type      string                 `yaml:"type"`
	Config    map[string]interface{} `yaml:"config"`
	NextNodes []string               `yaml:"next_nodes"`
	Retry     *Retry                 `yaml:"retry"`
}

// Definition is a complete workflow DAG (spec §3's Workflow Definition).
type Definition struct {
	WorkflowID string          `yaml:"workflow_id"`
	StartNode  string          `yaml:"start_node"`
	Nodes      map[string]Node `yaml:"-"`
	NodeList   []Node          `yaml:"nodes"`
}

// document is the on-disk YAML shape; multiple workflows may share a file.
type document struct {
	Workflows []Definition `yaml:"workflows"`
}

// index builds the Nodes lookup map from NodeList after YAML decode.
func (d *Definition) index() {
	d.Nodes = make(map[string]Node, len(d.NodeList))
	for _, n := range d.NodeList {
		d.Nodes[n.ID] = n
	}
}

// validate checks spec §3's invariants: the graph is acyclic, start-node
// exists, and every node reachable from start-node is defined.
func (d *Definition) validate() error {
	if d.WorkflowID == "" {
		return fmt.Errorf("definition: workflow_id is required")
	}
	if _, ok := d.Nodes[d.StartNode]; !ok {
		return fmt.Errorf("definition %s: start_node %q is not defined", d.WorkflowID, d.StartNode)
	}

	for _, n := range d.NodeList {
		for _, next := range n.NextNodes {
			if _, ok := d.Nodes[next]; !ok {
				return fmt.Errorf("definition %s: node %q references undefined next node %q", d.WorkflowID, n.ID, next)
			}
		}
	}

	return detectCycle(d)
}

// detectCycle runs a three-color DFS from every node of the definition;
// any back edge into a node still on the current path is a cycle.
func detectCycle(d *Definition) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(d.Nodes))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, next := range d.Nodes[id].NextNodes {
			switch color[next] {
			case gray:
				return fmt.Errorf("definition %s: cycle detected at node %q", d.WorkflowID, next)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for id := range d.Nodes {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Predecessors builds spec §4.9 step 1's predecessor map: for each node,
// the set of nodes whose next-nodes list contains it.
func (d *Definition) Predecessors() map[string][]string {
	preds := make(map[string][]string, len(d.Nodes))
	for id := range d.Nodes {
		preds[id] = nil
	}
	for _, n := range d.NodeList {
		for _, next := range n.NextNodes {
			preds[next] = append(preds[next], n.ID)
		}
	}
	return preds
}
