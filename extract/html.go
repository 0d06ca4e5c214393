package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// skippedElements never contribute visible text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"head": true, "template": true,
}

// blockElements get a blank line after their text so paragraph structure
// survives into chunking.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"li": true, "tr": true, "br": true, "pre": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// headingMarkers map HTML headings back to markdown so section titles keep
// working downstream.
var headingMarkers = map[string]string{
	"h1": "# ", "h2": "## ", "h3": "### ", "h4": "#### ",
}

func extractHTML(content []byte, _ string) (string, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.ElementNode {
			if marker, ok := headingMarkers[n.Data]; ok {
				b.WriteString(marker)
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteString("\n\n")
		}
	}
	walk(root)

	return collapseBlankRuns(b.String()), nil
}

// collapseBlankRuns trims trailing spaces and squeezes runs of blank lines
// down to one separator.
func collapseBlankRuns(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := true // swallow leading blanks
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"
}
