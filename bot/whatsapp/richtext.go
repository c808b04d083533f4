package whatsapp

import (
	"fmt"
	"regexp"
	"strings"

	"BotFlow/entity"
)

// richTextToMarkdown renders Slate nodes with WhatsApp inline markers.
func richTextToMarkdown(nodes []entity.RichTextNode) string {
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		lines = append(lines, renderBlock(n))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func renderBlock(n entity.RichTextNode) string {
	switch n.Type {
	case "ul", "ol":
		items := make([]string, 0, len(n.Children))
		for i, child := range n.Children {
			prefix := "• "
			if n.Type == "ol" {
				prefix = fmt.Sprintf("%d. ", i+1)
			}
			items = append(items, prefix+strings.TrimSpace(renderInline(child)))
		}
		return strings.Join(items, "\n")
	}
	return renderInline(n)
}

func renderInline(n entity.RichTextNode) string {
	if n.IsLeaf() {
		return markLeaf(n)
	}
	var sb strings.Builder
	for _, c := range n.Children {
		if c.Type == "ul" || c.Type == "ol" {
			sb.WriteString("\n" + renderBlock(c))
			continue
		}
		sb.WriteString(renderInline(c))
	}
	s := sb.String()
	if n.Type == "a" && n.URL != "" {
		label := strings.TrimSpace(s)
		switch {
		case label == "":
			s = n.URL
		case label != n.URL:
			s = s + " (" + n.URL + ")"
		}
	}
	return s
}

// markLeaf wraps the leaf text in markers while keeping surrounding spaces
// outside, otherwise WhatsApp ignores the formatting.
func markLeaf(n entity.RichTextNode) string {
	text := n.Text
	core := strings.TrimSpace(text)
	if core == "" {
		return text
	}
	lead := text[:strings.Index(text, core)]
	trail := text[len(lead)+len(core):]
	if n.Strikethrough {
		core = "~" + core + "~"
	}
	if n.Italic {
		core = "_" + core + "_"
	}
	if n.Bold {
		core = "*" + core + "*"
	}
	return lead + core + trail
}

var (
	mdBold   = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	mdItalic = regexp.MustCompile(`(^|[^*])\*([^*\s][^*]*?)\*`)
	mdStrike = regexp.MustCompile(`~~(.+?)~~`)
	mdLink   = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
)

// markdownToWhatsApp converts common markdown to WhatsApp markers. Bold is
// rewritten through a placeholder so the italic pass does not touch it.
func markdownToWhatsApp(md string) string {
	const boldMark = "\x00"
	s := mdLink.ReplaceAllStringFunc(md, func(m string) string {
		parts := mdLink.FindStringSubmatch(m)
		label, url := strings.TrimSpace(parts[1]), parts[2]
		if label == "" || label == url {
			return url
		}
		return label + " (" + url + ")"
	})
	s = mdBold.ReplaceAllStringFunc(s, func(m string) string {
		parts := mdBold.FindStringSubmatch(m)
		inner := parts[1]
		if inner == "" {
			inner = parts[2]
		}
		return boldMark + inner + boldMark
	})
	s = mdItalic.ReplaceAllString(s, "${1}_${2}_")
	s = mdStrike.ReplaceAllString(s, "~${1}~")
	s = strings.ReplaceAll(s, boldMark, "*")
	return strings.TrimSpace(s)
}
