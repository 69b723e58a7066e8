// Package describe provides structured, hierarchical descriptions of
// runtime I/O objects for introspection and diagnostics.
//
// Every self-describing component (context, registry, providers, platforms,
// I/O instances) produces a Descriptor tree. Descriptors are plain values:
// building one has no side effects, and rendering is separate from building.
package describe

import (
	"fmt"
	"io"
	"strings"
)

// Descriptor is one node in a description tree.
type Descriptor struct {
	// Category classifies the node, e.g. REGISTRY or digital-output.
	Category string `json:"category"`

	// ID is the unique identifier of the described object, if it has one.
	ID string `json:"id,omitempty"`

	// Name is the human-readable label.
	Name string `json:"name,omitempty"`

	// Value is the current value of the object, if meaningful (a digital
	// output reports its level here).
	Value string `json:"value,omitempty"`

	// Quantity is the number of contained objects for container nodes.
	Quantity int `json:"quantity,omitempty"`

	// Children are the nested descriptions, in enumeration order.
	Children []Descriptor `json:"children,omitempty"`
}

// Print writes the descriptor tree to w, one node per line, indented two
// spaces per depth level.
func Print(w io.Writer, d Descriptor) error {
	return printNode(w, d, 0)
}

// String renders the full tree as a multi-line string.
func (d Descriptor) String() string {
	var b strings.Builder
	printNode(&b, d, 0) //nolint:errcheck // strings.Builder writes cannot fail
	return b.String()
}

func printNode(w io.Writer, d Descriptor, depth int) error {
	if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), d.line()); err != nil {
		return err
	}
	for _, c := range d.Children {
		if err := printNode(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// line renders a single node as: CATEGORY "name" [id] = value (quantity).
// Empty fields are skipped.
func (d Descriptor) line() string {
	var b strings.Builder
	b.WriteString(d.Category)
	if d.Name != "" {
		fmt.Fprintf(&b, " %q", d.Name)
	}
	if d.ID != "" && d.ID != d.Name {
		fmt.Fprintf(&b, " [%s]", d.ID)
	}
	if d.Value != "" {
		fmt.Fprintf(&b, " = %s", d.Value)
	}
	if d.Quantity > 0 {
		fmt.Fprintf(&b, " (%d)", d.Quantity)
	}
	return b.String()
}
