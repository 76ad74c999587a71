package stats

import (
	"fmt"
	"io"
	"strings"

	"axonsim/internal/nn"
)

// UsageLine is one module in a neuron usage report.
type UsageLine struct {
	Depth    int    `json:"depth"`
	Module   string `json:"module"`
	Neurons  int    `json:"neurons"`
	Own      int    `json:"own"`
	Expanded bool   `json:"expanded"`
}

// NeuronUsage lists root and its sub-modules down to maxDepth with the total
// neuron count of each subtree.
func NeuronUsage(root *nn.Module, maxDepth int) []UsageLine {
	var lines []UsageLine
	var visit func(m *nn.Module, depth int)
	visit = func(m *nn.Module, depth int) {
		subs := m.Subnetworks()
		expanded := depth < maxDepth && len(subs) > 0
		lines = append(lines, UsageLine{
			Depth:    depth,
			Module:   m.UID(),
			Neurons:  len(m.AllNeurons()),
			Own:      len(m.Neurons()),
			Expanded: expanded,
		})
		if depth >= maxDepth {
			return
		}
		for _, sub := range subs {
			visit(sub, depth+1)
		}
	}
	visit(root, 0)
	return lines
}

func WriteNeuronUsage(w io.Writer, lines []UsageLine) error {
	for _, line := range lines {
		indent := strings.Repeat(" ", 4*line.Depth)
		if _, err := fmt.Fprintf(w, "%s%s: %d neurons\n", indent, line.Module, line.Neurons); err != nil {
			return err
		}
		if line.Expanded {
			if _, err := fmt.Fprintf(w, "%s    own %d\n", indent, line.Own); err != nil {
				return err
			}
		}
	}
	if len(lines) > 0 {
		_, err := fmt.Fprintf(w, "-> Total: %d neurons\n", lines[0].Neurons)
		return err
	}
	return nil
}
