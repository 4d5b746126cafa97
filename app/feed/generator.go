package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"time"
)

// Generator renders cached posts as an RSS 2.0 document.
type Generator struct {
	title       string
	link        string
	description string
	version     string
}

func NewGenerator(title, link, description, version string) *Generator {
	return &Generator{
		title:       title,
		link:        link,
		description: description,
		version:     version,
	}
}

// Run writes posts in the given order. selfLink is the public URL of the
// generated feed and may be empty.
func (g *Generator) Run(posts []DatedPost, selfLink string) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", g.title, 4)
	g.writeElement(&buf, "link", g.link, 4)
	g.writeElement(&buf, "description", g.description, 4)

	if selfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(selfLink)))
	}

	lastBuildDate := time.Now().UTC()
	if len(posts) > 0 {
		lastBuildDate = posts[0].Date.Time()
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Postcard/%s", g.version), 4)

	for _, p := range posts {
		g.writeItem(&buf, p)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, p DatedPost) {
	buf.WriteString("    <item>\n")

	if p.Post.Link != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", isURL(p.Post.Link)))
		xml.EscapeText(buf, []byte(p.Post.Link))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", p.Post.Title, 6)
	g.writeElement(buf, "link", p.Post.Link, 6)
	g.writeElement(buf, "description", p.Post.Summary, 6)
	g.writeElement(buf, "pubDate", p.Date.Time().Format(time.RFC1123Z), 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}
