// Package markdown extracts tags, links and metadata from markdown notes.
package markdown

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/logger"
)

// Verify interface compliance at compile time.
var _ driven.FactExtractor = (*Extractor)(nil)

var (
	wikilinkPattern  = regexp.MustCompile(`!?\[\[([^\[\]\n]+)\]\]`)
	inlineTagPattern = regexp.MustCompile(`(?:^|[\s,;])#([\p{L}\p{N}_/-]+)`)
	digitsOnly       = regexp.MustCompile(`^[0-9]+$`)
)

// markdownExtensions lists the file extensions parsed as markdown.
// Other files only get a content hash.
var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func getParser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserInstance
}

// Extractor derives facts from markdown notes with YAML front matter.
//
// Front matter keys: kind (or type), status, tags (list or comma separated).
// Body tags are #words outside code. Links are markdown links to local
// files, resolved against the note's directory, and [[wikilinks]], kept as
// unresolved labels.
type Extractor struct{}

// New creates a markdown Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ContentHash returns the hex BLAKE3-256 digest of content.
func (e *Extractor) ContentHash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Extract parses content into facts.
func (e *Extractor) Extract(filePath string, content []byte) (facts domain.Facts) {
	facts.ContentHash = e.ContentHash(content)
	if !markdownExtensions[strings.ToLower(path.Ext(filePath))] {
		return facts
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("extract %s: parser panic: %v", filePath, r)
			facts = domain.Facts{ContentHash: facts.ContentHash}
		}
	}()

	meta, body, err := splitFrontMatter(content)
	if err != nil {
		logger.Debug("extract %s: %v", filePath, err)
		return facts
	}

	facts.Kind = scalar(meta, "kind")
	if facts.Kind == "" {
		facts.Kind = scalar(meta, "type")
	}
	facts.Status = scalar(meta, "status")

	tags := metaTags(meta)
	links, masked := scanBody(filePath, body)
	tags = append(tags, inlineTags(masked)...)

	facts.Tags = domain.NormaliseTags(tags)
	facts.OutboundLinks = links
	return facts
}

// splitFrontMatter separates a leading YAML block from the body.
// Content without front matter returns a nil map and the whole content.
// Malformed YAML is an error.
func splitFrontMatter(content []byte) (map[string]any, []byte, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	first, rest, found := cutLine(content)
	if !found || strings.TrimSpace(string(first)) != "---" {
		return nil, content, nil
	}

	var block []byte
	for {
		var line []byte
		line, rest, found = cutLine(rest)
		trimmed := strings.TrimSpace(string(line))
		if trimmed == "---" || trimmed == "..." {
			meta := map[string]any{}
			if err := yaml.Unmarshal(block, &meta); err != nil {
				return nil, nil, fmt.Errorf("front matter: %w", err)
			}
			return meta, rest, nil
		}
		block = append(block, line...)
		block = append(block, '\n')
		if !found {
			break
		}
	}
	// An unterminated block is an ordinary thematic break.
	return nil, content, nil
}

// cutLine splits off the first line, dropping its terminator.
func cutLine(b []byte) (line, rest []byte, found bool) {
	line, rest, found = bytes.Cut(b, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r")), rest, found
}

func scalar(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any, map[string]any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func metaTags(meta map[string]any) []string {
	raw, ok := meta["tags"]
	if !ok {
		raw = meta["tag"]
	}
	var out []string
	add := func(s string) {
		s = strings.TrimPrefix(strings.TrimSpace(s), "#")
		if s != "" {
			out = append(out, s)
		}
	}
	switch v := raw.(type) {
	case string:
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			add(part)
		}
	case []any:
		for _, item := range v {
			if item != nil {
				add(fmt.Sprint(item))
			}
		}
	}
	return out
}

func inlineTags(masked []byte) []string {
	var out []string
	for _, m := range inlineTagPattern.FindAllSubmatch(masked, -1) {
		tag := strings.TrimRight(string(m[1]), "/")
		if tag == "" || digitsOnly.MatchString(tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

type positionedLink struct {
	pos    int
	target string
}

// scanBody walks the markdown AST. It returns link targets in document
// order and a copy of body with code blanked out for tag scanning.
func scanBody(filePath string, body []byte) ([]string, []byte) {
	doc := getParser().Parser().Parse(text.NewReader(body))

	masked := append([]byte(nil), body...)
	blank := func(seg text.Segment) {
		for i := seg.Start; i < seg.Stop && i < len(masked); i++ {
			if masked[i] != '\n' {
				masked[i] = ' '
			}
		}
	}

	var links []positionedLink
	lastPos := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				blank(lines.At(i))
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					blank(t.Segment)
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			for i := 0; i < node.Segments.Len(); i++ {
				blank(node.Segments.At(i))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			lastPos = node.Segment.Start
		case *ast.Link:
			pos := lastPos
			if t := firstText(node); t != nil {
				pos = t.Segment.Start
			}
			if target, ok := resolveLink(filePath, string(node.Destination)); ok {
				links = append(links, positionedLink{pos: pos, target: target})
			}
		}
		return ast.WalkContinue, nil
	})

	for _, m := range wikilinkPattern.FindAllSubmatchIndex(masked, -1) {
		if target, ok := wikiTarget(string(masked[m[2]:m[3]])); ok {
			links = append(links, positionedLink{pos: m[0], target: target})
		}
	}
	// Wikilinks are not tags.
	for _, m := range wikilinkPattern.FindAllIndex(masked, -1) {
		blank(text.NewSegment(m[0], m[1]))
	}

	sort.SliceStable(links, func(i, j int) bool { return links[i].pos < links[j].pos })
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if _, dup := seen[l.target]; dup {
			continue
		}
		seen[l.target] = struct{}{}
		out = append(out, l.target)
	}
	return out, masked
}

func firstText(n ast.Node) *ast.Text {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			return t
		}
		if t := firstText(c); t != nil {
			return t
		}
	}
	return nil
}

// resolveLink turns a markdown link destination into a vault path.
// External URLs and same-document anchors are dropped.
func resolveLink(filePath, dest string) (string, bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "#") {
		return "", false
	}
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	p := u.Path
	if p == "" {
		return "", false
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(path.Dir(filePath), p)
	}
	p = domain.NormalisePath(p)
	return p, p != ""
}

// wikiTarget strips aliases, headings and block references from a
// wikilink body.
func wikiTarget(inner string) (string, bool) {
	if i := strings.IndexByte(inner, '|'); i >= 0 {
		inner = inner[:i]
	}
	if i := strings.IndexAny(inner, "#^"); i >= 0 {
		inner = inner[:i]
	}
	inner = strings.TrimSpace(inner)
	return inner, inner != ""
}
