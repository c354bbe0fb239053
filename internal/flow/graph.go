// Package flow turns free-text financial analysis into a revenue → cost →
// profit flow graph suitable for a Sankey diagram. Parsing is best effort;
// when nothing usable comes out, a fixed illustrative dataset is used.
package flow

import (
	"errors"
	"fmt"
	"math"
)

// Category colors a node in the diagram.
type Category string

const (
	CategoryRevenue Category = "revenue"
	CategoryCost    Category = "cost"
	CategoryProfit  Category = "profit"
	CategoryLoss    Category = "loss"
)

// AggregatorLabel is the synthetic node every revenue source feeds.
const AggregatorLabel = "Total Revenue"

type Node struct {
	Label    string   `json:"label"`
	Category Category `json:"category"`
}

// Edge values are in millions.
type Edge struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Value  float64 `json:"value"`
}

// Graph is a layered DAG: sources → aggregator → costs and profits.
// Fallback reports that the graph is the illustrative dataset rather than
// data parsed from the analysis.
type Graph struct {
	Title    string `json:"title,omitempty"`
	Nodes    []Node `json:"nodes"`
	Edges    []Edge `json:"edges"`
	Fallback bool   `json:"fallback"`
}

var errEmptyGraph = errors.New("no usable revenue data")

// Validate checks the structural invariants a renderer relies on.
func (g Graph) Validate() error {
	if len(g.Nodes) == 0 || len(g.Edges) == 0 {
		return errEmptyGraph
	}
	for i, e := range g.Edges {
		if e.Source < 0 || e.Source >= len(g.Nodes) || e.Target < 0 || e.Target >= len(g.Nodes) {
			return fmt.Errorf("edge %d references a missing node", i)
		}
		if e.Source == e.Target {
			return fmt.Errorf("edge %d is a self loop", i)
		}
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) || e.Value < 0 {
			return fmt.Errorf("edge %d has invalid value %v", i, e.Value)
		}
	}
	return nil
}

// BuildGraph lays out a Breakdown: every revenue item feeds the aggregator,
// which feeds every cost item and the optional profit figures.
func BuildGraph(b Breakdown) (Graph, error) {
	revenues := b.Revenues
	if len(revenues) == 0 && b.TotalRevenue > 0 {
		revenues = []Item{{Label: "Revenue", Amount: b.TotalRevenue}}
	}

	var total float64
	for _, r := range revenues {
		if r.Amount > 0 {
			total += r.Amount
		}
	}
	if total <= 0 {
		return Graph{}, errEmptyGraph
	}

	var gb graphBuilder
	sources := make([]int, len(revenues))
	for i, r := range revenues {
		sources[i] = gb.node(r.Label, CategoryRevenue)
	}
	agg := gb.node(AggregatorLabel, CategoryRevenue)
	for i, r := range revenues {
		gb.edge(sources[i], agg, math.Max(r.Amount, 0))
	}

	for _, c := range b.Costs {
		if c.Amount > 0 {
			gb.edge(agg, gb.node(c.Label, CategoryCost), c.Amount)
		}
	}
	if b.GrossProfit != nil {
		gb.profit(agg, "Gross Profit", "Gross Loss", *b.GrossProfit)
	}
	if b.OperatingProfit != nil {
		gb.profit(agg, "Operating Profit", "Operating Loss", *b.OperatingProfit)
	}
	return gb.g, nil
}

type graphBuilder struct {
	g Graph
}

func (b *graphBuilder) node(label string, c Category) int {
	b.g.Nodes = append(b.g.Nodes, Node{Label: label, Category: c})
	return len(b.g.Nodes) - 1
}

func (b *graphBuilder) edge(src, dst int, v float64) {
	b.g.Edges = append(b.g.Edges, Edge{Source: src, Target: dst, Value: v})
}

// profit adds a sink for a profit figure; negative values become a loss node
// carrying the absolute amount.
func (b *graphBuilder) profit(from int, profitLabel, lossLabel string, v float64) {
	switch {
	case v > 0:
		b.edge(from, b.node(profitLabel, CategoryProfit), v)
	case v < 0:
		b.edge(from, b.node(lossLabel, CategoryLoss), -v)
	}
}

// Parse extracts a flow graph from analysis text. It never panics and
// always returns a graph that passes Validate: when extraction yields
// nothing usable the illustrative sample is returned with Fallback set.
func Parse(text string) (g Graph) {
	defer func() {
		if r := recover(); r != nil {
			g = Sample()
		}
	}()

	g, err := BuildGraph(Extract(text))
	if err != nil || g.Validate() != nil {
		return Sample()
	}
	return g
}
