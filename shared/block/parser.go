package block

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// delimiterPattern matches block comment delimiters:
//
//	<!-- wp:ns/name {"attr":1} -->   opener
//	<!-- /wp:ns/name -->             closer
//	<!-- wp:ns/name {"attr":1} /-->  void
var delimiterPattern = regexp.MustCompile(`<!--\s+(/)?wp:([a-z][a-z0-9_-]*/)?([a-z][a-z0-9_-]*)\s+(\{(?s:.*?)\}\s+)?(/)?-->`)

// Node is one piece of parsed content: freeform HTML or a block.
type Node struct {
	HTML  string
	Block *Block
}

// Block is a parsed block with its inner content.
type Block struct {
	Name string
	// Attrs is nil when the delimiter had no attributes or they were not a
	// JSON object.
	Attrs    Attributes
	Children []Node
}

type delimiter struct {
	start, end int
	name       string
	attrs      Attributes
	closer     bool
	void       bool
}

func parseDelimiter(content string, loc []int) delimiter {
	d := delimiter{
		start:  loc[0],
		end:    loc[1],
		closer: loc[2] >= 0,
		void:   loc[10] >= 0,
	}

	namespace := "core/"
	if loc[4] >= 0 {
		namespace = content[loc[4]:loc[5]]
	}
	d.name = namespace + content[loc[6]:loc[7]]

	if loc[8] >= 0 {
		var attrs Attributes
		if err := json.Unmarshal([]byte(strings.TrimSpace(content[loc[8]:loc[9]])), &attrs); err == nil {
			d.attrs = attrs
		}
	}

	return d
}

// Parse splits content into freeform HTML and blocks. Openers left unclosed
// at the end of input absorb the rest of the content; closers that do not
// match the innermost open block are kept as freeform HTML.
func Parse(content string) []Node {
	var root []Node
	var stack []*Block

	appendNode := func(n Node) {
		if len(stack) == 0 {
			root = append(root, n)
			return
		}
		top := stack[len(stack)-1]
		top.Children = append(top.Children, n)
	}
	appendHTML := func(s string) {
		if s != "" {
			appendNode(Node{HTML: s})
		}
	}

	cursor := 0
	for _, loc := range delimiterPattern.FindAllStringSubmatchIndex(content, -1) {
		d := parseDelimiter(content, loc)
		appendHTML(content[cursor:d.start])
		cursor = d.end

		switch {
		case d.closer:
			if len(stack) == 0 || stack[len(stack)-1].Name != d.name {
				appendHTML(content[d.start:d.end])
				continue
			}
			closed := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			appendNode(Node{Block: closed})
		case d.void:
			appendNode(Node{Block: &Block{Name: d.name, Attrs: d.attrs}})
		default:
			stack = append(stack, &Block{Name: d.name, Attrs: d.attrs})
		}
	}
	appendHTML(content[cursor:])

	for len(stack) > 0 {
		closed := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		appendNode(Node{Block: closed})
	}

	return root
}

// RenderContent renders every block in content. Inner blocks render first;
// dynamic blocks then pass through their RenderFunc and everything else
// outputs its inner content.
func (r *Registry) RenderContent(ctx context.Context, content string, rc RenderContext) (string, error) {
	var sb strings.Builder
	if err := r.renderNodes(ctx, &sb, Parse(content), rc); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *Registry) renderNodes(ctx context.Context, sb *strings.Builder, nodes []Node, rc RenderContext) error {
	for _, n := range nodes {
		if n.Block == nil {
			sb.WriteString(n.HTML)
			continue
		}

		var inner strings.Builder
		if err := r.renderNodes(ctx, &inner, n.Block.Children, rc); err != nil {
			return err
		}

		t, ok := r.Get(n.Block.Name)
		if !ok || !t.IsDynamic() {
			sb.WriteString(inner.String())
			continue
		}

		out, err := r.renderType(ctx, t, n.Block.Attrs, inner.String(), rc)
		if err != nil {
			return err
		}
		sb.WriteString(out)
	}
	return nil
}
