package travis

import (
	"fmt"
	"regexp"
)

// Group is a composite of the blocks that share a group name, for example
// "git.checkout" and "git.submodule".
type Group struct {
	Name     string
	Suffixes []string
	Items    []Node

	numeric  []int
	finished bool
}

// NewGroup returns an empty group expecting the given suffixes. When every
// suffix is a sequence number the group is complete once the highest one
// arrives; otherwise once it holds one item per suffix.
func NewGroup(name string, suffixes []string) *Group {
	g := &Group{Name: name, Suffixes: suffixes}
	for _, s := range suffixes {
		n, err := ParseName(name + "." + s)
		if s == "" || err != nil || !n.Numbered() {
			g.numeric = nil
			return g
		}
		g.numeric = append(g.numeric, n.Seq)
	}
	return g
}

// NodeName implements Node.
func (g *Group) NodeName() string { return g.Name }

// Numeric returns the sequence numbers the group was built from, or nil when
// its suffixes are labels.
func (g *Group) Numeric() []int { return g.numeric }

// ExpectedCount is the number of items a complete group holds. Numbered
// groups tolerate gaps, so "git.1" and "git.3" expect three.
func (g *Group) ExpectedCount() int {
	if g.numeric == nil {
		return len(g.Suffixes)
	}
	highest := 0
	for _, n := range g.numeric {
		highest = max(highest, n)
	}
	return highest
}

// Finished reports whether the group is complete.
func (g *Group) Finished() bool { return g.finished }

// Append adds the next item of a group that is not yet complete.
func (g *Group) Append(n Node) error {
	if g.finished {
		return fmt.Errorf("group %s is complete, cannot add %s", g.Name, n.NodeName())
	}
	g.add(n)
	return nil
}

func (g *Group) add(n Node) {
	g.Items = append(g.Items, n)
	if g.numeric == nil {
		g.finished = len(g.Items) >= g.ExpectedCount()
		return
	}
	if name, err := ParseName(n.NodeName()); err == nil && name.Numbered() && name.Seq == g.ExpectedCount() {
		g.finished = true
	}
}

// Commands returns every command of the group's items.
func (g *Group) Commands() []*Command { return commandsOfNodes(g.Items) }

func (g *Group) String() string {
	return fmt.Sprintf("<group %s: %d items>", g.Name, len(g.Items))
}

// Script is the script section synthesised from the blocks that ran between
// install and completion when the log did not mark it.
type Script struct {
	Items []Node
}

// NodeName implements Node.
func (*Script) NodeName() string { return "script" }

// Commands returns every command of the script's items.
func (s *Script) Commands() []*Command { return commandsOfNodes(s.Items) }

// CommandsOf returns the commands of any tree node.
func CommandsOf(n Node) []*Command {
	switch v := n.(type) {
	case *Block:
		return v.Commands()
	case *Group:
		return v.Commands()
	case *Script:
		return v.Commands()
	}
	return nil
}

func commandsOfNodes(nodes []Node) []*Command {
	var out []*Command
	for _, n := range nodes {
		out = append(out, CommandsOf(n)...)
	}
	return out
}

// LinesOf returns the raw text lines held by a tree node in document order.
// Directive lines are not retained and blank lines come back empty.
func LinesOf(n Node) []string {
	switch v := n.(type) {
	case *Block:
		return linesOf(v.Elements)
	case *Group:
		return linesOfNodes(v.Items)
	case *Script:
		return linesOfNodes(v.Items)
	}
	return nil
}

func linesOfNodes(nodes []Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, LinesOf(n)...)
	}
	return out
}

var activatePattern = regexp.MustCompile(`^source .*/activate`)

// Regroup merges blocks of repeated groups into Group composites, synthesises
// a script section when none was marked, and wraps the virtualenv activation
// timer. The input tree is not modified. Composites are treated as opaque, so
// regrouping a regrouped tree returns an equal tree.
func Regroup(raw *Tree) *Tree {
	out := groupRepeated(raw)
	synthesizeScript(out)
	wrapActivation(out)
	return out
}

func groupRepeated(raw *Tree) *Tree {
	type decomposed struct {
		group, suffix string
	}
	parts := make([]decomposed, len(raw.nodes))
	counts := make(map[string]int)
	suffixes := make(map[string][]string)
	for i, n := range raw.nodes {
		d := decomposed{group: n.NodeName()}
		if _, isBlock := n.(*Block); isBlock {
			if name, err := ParseName(n.NodeName()); err == nil {
				d = decomposed{group: name.Group, suffix: name.Suffix()}
			}
		}
		parts[i] = d
		counts[d.group]++
		suffixes[d.group] = append(suffixes[d.group], d.suffix)
	}

	out := NewTree()
	created := make(map[string]*Group)
	for i, n := range raw.nodes {
		// a group still waiting for parts absorbs whatever lies between them
		if g, ok := out.Last().(*Group); ok && created[g.Name] == g && !g.Finished() {
			g.add(n)
			continue
		}
		d := parts[i]
		if counts[d.group] < 2 {
			_ = out.Append(n)
			continue
		}
		g, ok := created[d.group]
		if !ok {
			g = NewGroup(d.group, suffixes[d.group])
			created[d.group] = g
			_ = out.Append(g)
		}
		g.add(n)
	}
	return out
}

func synthesizeScript(t *Tree) {
	if t.Has("script") || !t.Has("_done") {
		return
	}
	start := t.Index("install")
	end := t.Index("_done")
	if start < 0 || end < start {
		return
	}
	script := &Script{}
	for i := start + 1; i < end; i++ {
		script.Items = append(script.Items, t.nodes[i])
	}
	t.nodes = append(t.nodes[:start+1], t.nodes[end:]...)
	t.reindex()
	_ = t.insert(start+1, script)
}

func wrapActivation(t *Tree) {
	for i, n := range t.nodes {
		if n.NodeName() == "script" {
			return
		}
		b, ok := n.(*Block)
		if !ok {
			continue
		}
		for j, e := range b.Elements {
			switch v := e.(type) {
			case *Activation:
				return
			case *Timer:
				if len(v.Elements) == 0 {
					continue
				}
				c, ok := v.Elements[0].(*Command)
				if !ok || !activatePattern.MatchString(c.Executed()) {
					continue
				}
				wrapped := *b
				wrapped.Elements = append([]Element(nil), b.Elements...)
				wrapped.Elements[j] = &Activation{Timer: v}
				t.nodes[i] = &wrapped
				return
			}
		}
	}
}
