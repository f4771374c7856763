package link

import "sync"

const (
	damping    = 0.85
	iterations = 20
)

// Graph is the domain-level link graph. Edges are deduplicated; a page
// linking to the same domain twice counts once.
type Graph struct {
	mu    sync.Mutex
	edges map[string]map[string]struct{}
	nodes map[string]struct{}
}

func NewGraph() *Graph {
	return &Graph{
		edges: map[string]map[string]struct{}{},
		nodes: map[string]struct{}{},
	}
}

// AddEdge records a link from one domain to another. Self links are
// kept out of the graph; they say nothing about external authority.
func (g *Graph) AddEdge(from, to string) {
	if from == "" || to == "" || from == to {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}
	out, ok := g.edges[from]
	if !ok {
		out = map[string]struct{}{}
		g.edges[from] = out
	}
	out[to] = struct{}{}
}

// AddNode registers a domain with no known links yet so it still
// receives a rank share.
func (g *Graph) AddNode(domain string) {
	if domain == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[domain] = struct{}{}
}

// Len reports the node count.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// PageRank runs the standard power iteration with damping 0.85 for a
// fixed number of rounds. The rank mass of dangling nodes is
// redistributed evenly each round, so scores always sum to one.
func (g *Graph) PageRank() map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.nodes)
	if n == 0 {
		return map[string]float64{}
	}

	rank := make(map[string]float64, n)
	for node := range g.nodes {
		rank[node] = 1 / float64(n)
	}

	for i := 0; i < iterations; i++ {
		next := make(map[string]float64, n)
		dangling := 0.0
		for node, r := range rank {
			out := g.edges[node]
			if len(out) == 0 {
				dangling += r
				continue
			}
			share := r / float64(len(out))
			for to := range out {
				next[to] += share
			}
		}

		base := (1-damping)/float64(n) + damping*dangling/float64(n)
		for node := range g.nodes {
			rank[node] = base + damping*next[node]
		}
	}
	return rank
}
