package application

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"gopkg.in/yaml.v3"
)

const (
	maxLength        = 200
	untitledPost     = "Untitled Post"
	frontMatterFence = "---"
)

// FrontMatter is the optional YAML header of a post file.
type FrontMatter struct {
	Title      string   `yaml:"title"`
	Slug       string   `yaml:"slug"`
	Type       string   `yaml:"type"`
	Status     string   `yaml:"status"`
	Date       string   `yaml:"date"`
	Tags       []string `yaml:"tags"`
	Categories []string `yaml:"categories"`
}

// MarkdownProcessingResult contains the results of processing a markdown file
type MarkdownProcessingResult struct {
	FrontMatter FrontMatter
	Title       string
	Snippet     string
	HTMLContent []byte
}

type relativeLinkTransformer struct {
	domain string
}

func (t *relativeLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		link, linkOk := n.(*ast.Link)
		img, imgOk := n.(*ast.Image)
		if !linkOk && !imgOk {
			return ast.WalkContinue, nil
		}

		dest := ""
		if linkOk {
			dest = string(link.Destination)
		} else if imgOk {
			dest = string(img.Destination)
		}

		if isRelativeLink(dest) {
			destFile := path.Base(dest)
			if imgOk {
				img.Destination = []byte(t.domain + "/images/" + destFile)
			} else if linkOk {
				// Post links resolve to /posts/<id>
				destFile = strings.TrimSuffix(destFile, ".md")
				destFile = strings.TrimSuffix(destFile, ".html")
				if id, _, ok := splitPostFileName(destFile + ".md"); ok {
					destFile = "posts/" + strconv.FormatInt(id, 10)
				}
				link.Destination = []byte(t.domain + "/" + destFile)
			}
		}

		return ast.WalkContinue, nil
	})
}

func isRelativeLink(dest string) bool {
	// Absolute path check
	if strings.HasPrefix(dest, "/") {
		if strings.HasPrefix(dest, "//") {
			return false
		}
		return true
	}

	if strings.HasPrefix(dest, "./") || strings.HasPrefix(dest, "../") {
		return true
	}

	if strings.Contains(dest, ":") {
		return false
	}

	return true
}

// MarkdownRenderer defines the interface for converting markdown to HTML.
type MarkdownRenderer interface {
	Render(markdown []byte) (*MarkdownProcessingResult, error)
}

type MarkdownRendererImpl struct {
	renderer goldmark.Markdown
	baseURL  string
}

// NewMarkdownRenderer returns a goldmark renderer that rewrites relative
// links and images against baseURL. Raw HTML is kept so block delimiters
// survive into the stored content.
func NewMarkdownRenderer(baseURL string) MarkdownRenderer {
	baseURL = strings.TrimRight(baseURL, "/")

	renderer := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(&relativeLinkTransformer{domain: baseURL}, 100),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
			html.WithUnsafe(),
		),
	)

	return &MarkdownRendererImpl{
		renderer: renderer,
		baseURL:  baseURL,
	}
}

func (r *MarkdownRendererImpl) Render(markdown []byte) (*MarkdownProcessingResult, error) {
	header, body := splitFrontMatter(markdown)

	var fm FrontMatter
	if len(header) > 0 {
		if err := yaml.Unmarshal(header, &fm); err != nil {
			return nil, fmt.Errorf("failed to parse front matter: %w", err)
		}
	}

	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title = extractPostTitle(body)
	}

	var buf bytes.Buffer
	err := r.renderer.Convert(body, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	return &MarkdownProcessingResult{
		FrontMatter: fm,
		Title:       title,
		Snippet:     extractSnippet(body),
		HTMLContent: buf.Bytes(),
	}, nil
}

// splitFrontMatter separates a leading "---" fenced YAML header from the
// body. Without an opening and closing fence the whole input is body.
func splitFrontMatter(markdown []byte) ([]byte, []byte) {
	content := string(markdown)
	first, rest, found := strings.Cut(content, "\n")
	if !found || strings.TrimSpace(first) != frontMatterFence {
		return nil, markdown
	}

	var header strings.Builder
	for {
		line, remaining, more := strings.Cut(rest, "\n")
		if strings.TrimSpace(line) == frontMatterFence {
			return []byte(header.String()), []byte(remaining)
		}
		if !more {
			return nil, markdown
		}
		header.WriteString(line)
		header.WriteByte('\n')
		rest = remaining
	}
}

func extractPostTitle(markdown []byte) string {
	lines := strings.SplitN(string(markdown), "\n", 2)
	if len(lines) == 0 {
		return untitledPost
	}

	firstLine := strings.TrimSpace(lines[0])
	title, found := strings.CutPrefix(firstLine, "# ")
	if !found {
		return untitledPost
	}

	return strings.TrimSpace(title)
}

func extractSnippet(markdown []byte) string {
	lines := strings.Split(string(markdown), "\n")
	var paragraphLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Skip headings before we find content
		if strings.HasPrefix(trimmed, "#") {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		if trimmed == "" {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		// Block delimiters, code, rules, lists and tables never start a snippet
		if strings.HasPrefix(trimmed, "<!--") ||
			strings.HasPrefix(trimmed, "```") ||
			strings.HasPrefix(trimmed, "---") ||
			strings.HasPrefix(trimmed, "***") ||
			strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "* ") ||
			strings.HasPrefix(trimmed, "+ ") ||
			strings.HasPrefix(trimmed, "|") {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		paragraphLines = append(paragraphLines, trimmed)
	}

	if len(paragraphLines) == 0 {
		return ""
	}

	snippet := strings.Join(paragraphLines, " ")

	if len(snippet) > maxLength {
		snippet = snippet[:maxLength]
		if lastSpace := strings.LastIndexAny(snippet, " \t"); lastSpace > 0 {
			snippet = snippet[:lastSpace]
		}
		snippet += "..."
	}

	return snippet
}
