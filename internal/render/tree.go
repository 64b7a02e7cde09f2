// Package render formats parsed logs and reports for the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/muesli/reflow/truncate"

	"github.com/newhook/cilog/internal/travis"
)

const indentUnit = "  "

// Options controls layout.
type Options struct {
	// Width cuts every line at this column.
	Width int
	// MaxOutputLines limits the output shown per command. Negative shows
	// everything.
	MaxOutputLines int
}

// Renderer writes styled text.
type Renderer struct {
	opts Options
}

// New returns a renderer. A non-positive width is treated as 100.
func New(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 100
	}
	return &Renderer{opts: opts}
}

// Tree renders every node of a parsed log.
func (r *Renderer) Tree(tree *travis.Tree) string {
	var b strings.Builder
	for _, n := range tree.Nodes() {
		r.node(&b, n, 0)
	}
	return b.String()
}

func (r *Renderer) node(b *strings.Builder, n travis.Node, depth int) {
	switch v := n.(type) {
	case *travis.Block:
		r.block(b, v, depth)
	case *travis.Group:
		detail := fmt.Sprintf("group of %d", len(v.Items))
		if len(v.Suffixes) > 0 {
			detail += ": " + strings.Join(v.Suffixes, ", ")
		}
		r.line(b, depth, groupStyle.Render(v.Name)+" "+labelStyle.Render(detail))
		for _, item := range v.Items {
			r.node(b, item, depth+1)
		}
	case *travis.Script:
		r.line(b, depth, groupStyle.Render(v.NodeName())+" "+labelStyle.Render("synthesized"))
		for _, item := range v.Items {
			r.node(b, item, depth+1)
		}
	}
}

func (r *Renderer) block(b *strings.Builder, blk *travis.Block, depth int) {
	if blk.Kind == travis.KindBlankLines {
		return
	}
	header := sectionStyle.Render(blk.Name) + " " + labelStyle.Render(blk.Kind.String())
	if blk.Status() == travis.StatusOpen {
		header += " " + warningStyle.Render("open")
	}
	if blk.ExitCode != nil {
		header += " " + exitStyle(*blk.ExitCode).Render(fmt.Sprintf("exit %d", *blk.ExitCode))
	}
	r.line(b, depth, header)
	r.elements(b, blk.Elements, depth+1)
}

func (r *Renderer) elements(b *strings.Builder, elements []travis.Element, depth int) {
	for _, e := range elements {
		switch v := e.(type) {
		case *travis.Note:
			for _, l := range v.Lines {
				r.line(b, depth, dimStyle.Render(travis.StripANSI(l)))
			}
		case *travis.Command:
			r.command(b, v, depth)
		case *travis.Timer:
			r.line(b, depth, labelStyle.Render(timerLabel(v)))
			r.elements(b, v.Elements, depth+1)
		case *travis.Fold:
			r.line(b, depth, labelStyle.Render("fold "+v.ID))
			r.elements(b, v.Elements, depth+1)
		case *travis.Activation:
			r.line(b, depth, labelStyle.Render("activation"))
			r.elements(b, []travis.Element{v.Timer}, depth+1)
		case *travis.BlankLine:
		}
	}
}

func (r *Renderer) command(b *strings.Builder, c *travis.Command, depth int) {
	head := commandStyle.Render(c.String())
	if c.ExitCode != nil {
		head += " " + exitStyle(*c.ExitCode).Render(fmt.Sprintf("[%d]", *c.ExitCode))
	}
	r.line(b, depth, head)

	output := c.Output
	hidden := 0
	if limit := r.opts.MaxOutputLines; limit >= 0 && len(output) > limit {
		hidden = len(output) - limit
		output = output[:limit]
	}
	for _, l := range output {
		r.line(b, depth+1, dimStyle.Render(travis.StripANSI(l)))
	}
	if hidden > 0 {
		r.line(b, depth+1, labelStyle.Render(fmt.Sprintf("... %d more lines", hidden)))
	}
}

func timerLabel(t *travis.Timer) string {
	label := "timer " + t.ID
	switch {
	case !t.Closed():
		label += " (running)"
	case t.Duration > 0:
		label += " " + time.Duration(t.Duration).Round(time.Millisecond).String()
	}
	if t.Continues != nil {
		label += " (resumed)"
	}
	return label
}

// line writes one indented line cut at the configured width.
func (r *Renderer) line(b *strings.Builder, depth int, s string) {
	s = strings.Repeat(indentUnit, depth) + s
	b.WriteString(truncate.StringWithTail(s, uint(r.opts.Width), "..."))
	b.WriteByte('\n')
}

// Warnings renders parser warnings, one per line.
func (r *Renderer) Warnings(warnings []travis.Warning) string {
	var b strings.Builder
	for _, w := range warnings {
		r.line(&b, 0, warningStyle.Render("warning: "+w.String()))
	}
	return b.String()
}
