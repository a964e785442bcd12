package bvh

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// Stats describes the shape of a built hierarchy.
type Stats struct {
	Nodes    int
	Leaves   int
	Interior int
	MaxDepth int
	AvgDepth float64
}

// Stats returns statistics about the tree structure
func (t *Tree) Stats() Stats {
	if t == nil || t.Root == nil {
		return Stats{}
	}

	stats := Stats{}
	collectStats(t.Root, 0, &stats)

	// Average depth is accumulated per leaf, then normalised
	if stats.Leaves > 0 {
		stats.AvgDepth = stats.AvgDepth / float64(stats.Leaves)
	}

	return stats
}

func collectStats(n TreeNode, depth int, stats *Stats) {
	stats.Nodes++

	if depth > stats.MaxDepth {
		stats.MaxDepth = depth
	}

	switch n := n.(type) {
	case *Leaf:
		stats.Leaves++
		stats.AvgDepth += float64(depth)
	case *Interior:
		stats.Interior++
		collectStats(n.Left, depth+1, stats)
		collectStats(n.Right, depth+1, stats)
	}
}

// WriteTable renders the tree and flattened-array statistics as a table.
func WriteTable(w io.Writer, spheres int, stats Stats, nodes []Node) {
	escapes, objects := 0, 0
	for _, n := range nodes {
		if n.Kind == Escape {
			escapes++
		} else {
			objects++
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Spheres", fmt.Sprint(spheres)})
	table.Append([]string{"Tree nodes", fmt.Sprint(stats.Nodes)})
	table.Append([]string{"Interior nodes", fmt.Sprint(stats.Interior)})
	table.Append([]string{"Leaves", fmt.Sprint(stats.Leaves)})
	table.Append([]string{"Max depth", fmt.Sprint(stats.MaxDepth)})
	table.Append([]string{"Avg leaf depth", fmt.Sprintf("%.2f", stats.AvgDepth)})
	table.Append([]string{"Flattened escape", fmt.Sprint(escapes)})
	table.Append([]string{"Flattened object", fmt.Sprint(objects)})
	table.SetFooter([]string{"Flattened bytes", fmt.Sprint(len(nodes) * 48)})
	table.Render()
}
