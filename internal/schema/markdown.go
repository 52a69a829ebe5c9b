package schema

import (
	"fmt"
	"strconv"
	"strings"

	"ytsummarize/internal/acquire"
)

// Document is everything the Markdown view draws on.
type Document struct {
	Summary  Summary
	Meta     acquire.SourceMeta
	Glossary []Term
	// Gaps lists chunk indices whose extraction failed under the reduce
	// partial-failure policy.
	Gaps []int
}

// RenderMarkdown renders doc in the fixed section order: title and link,
// TL;DR, key points, chapters, quotes, action items, glossary. Empty sections
// are skipped; nothing here fails on an invalid summary.
func RenderMarkdown(doc Document) string {
	s := doc.Summary
	var b strings.Builder

	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = strings.TrimSpace(doc.Meta.Title)
	}
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	url := strings.TrimSpace(s.SourceURL)
	if url == "" {
		url = doc.Meta.SourceURL
	}
	switch {
	case url != "":
		fmt.Fprintf(&b, "[Source](%s)", url)
	case doc.Meta.FilePath != "":
		fmt.Fprintf(&b, "Source: `%s`", doc.Meta.FilePath)
	}
	if channel := strings.TrimSpace(doc.Meta.Channel); channel != "" {
		if url != "" || doc.Meta.FilePath != "" {
			b.WriteString(" · ")
		}
		b.WriteString(channel)
	}
	if url != "" || doc.Meta.FilePath != "" || doc.Meta.Channel != "" {
		b.WriteString("\n\n")
	}

	if len(doc.Gaps) > 0 {
		indices := make([]string, 0, len(doc.Gaps))
		for _, gap := range doc.Gaps {
			indices = append(indices, strconv.Itoa(gap+1))
		}
		label := "chunk"
		if len(doc.Gaps) > 1 {
			label = "chunks"
		}
		fmt.Fprintf(&b, "> **Note:** %s %s of the transcript could not be summarized and are not reflected below.\n\n",
			label, strings.Join(indices, ", "))
	}

	writeList(&b, "TL;DR", s.TLDR, "- ")
	writeList(&b, "Key Points", s.KeyPoints, "- ")

	if chapters := nonEmptyChapters(s.Chapters); len(chapters) > 0 {
		b.WriteString("## Chapters\n\n")
		for _, ch := range chapters {
			heading := strings.TrimSpace(ch.Heading)
			if start := strings.TrimSpace(ch.Start); start != "" {
				heading = start + " " + heading
			}
			fmt.Fprintf(&b, "### %s\n\n", strings.TrimSpace(heading))
			if bullets := nonEmpty(ch.Bullets); len(bullets) > 0 {
				for _, bullet := range bullets {
					fmt.Fprintf(&b, "- %s\n", bullet)
				}
				b.WriteString("\n")
			}
		}
	}

	if quotes := nonEmpty(s.Quotes); len(quotes) > 0 {
		b.WriteString("## Notable Quotes\n\n")
		for _, q := range quotes {
			fmt.Fprintf(&b, "> \"%s\"\n\n", strings.Trim(q, "\"“”"))
		}
	}

	writeList(&b, "Action Items", s.ActionItems, "- [ ] ")

	if terms := nonEmptyTerms(doc.Glossary); len(terms) > 0 {
		b.WriteString("## Glossary\n\n")
		for _, t := range terms {
			if def := strings.TrimSpace(t.Definition); def != "" {
				fmt.Fprintf(&b, "- **%s**: %s\n", strings.TrimSpace(t.Term), def)
			} else {
				fmt.Fprintf(&b, "- **%s**\n", strings.TrimSpace(t.Term))
			}
		}
		b.WriteString("\n")
	}

	if tags := nonEmpty(s.Tags); len(tags) > 0 {
		formatted := make([]string, 0, len(tags))
		for _, tag := range tags {
			formatted = append(formatted, "`"+tag+"`")
		}
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(formatted, " "))
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeList(b *strings.Builder, heading string, items []string, prefix string) {
	items = nonEmpty(items)
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, item := range items {
		b.WriteString(prefix)
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonEmptyChapters(chapters []Chapter) []Chapter {
	out := make([]Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if strings.TrimSpace(ch.Heading) != "" || len(nonEmpty(ch.Bullets)) > 0 {
			out = append(out, ch)
		}
	}
	return out
}

func nonEmptyTerms(terms []Term) []Term {
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if strings.TrimSpace(t.Term) != "" {
			out = append(out, t)
		}
	}
	return out
}
