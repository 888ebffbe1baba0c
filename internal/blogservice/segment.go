package blogservice

import (
	"regexp"
	"strings"
)

const maxHeadingLevel = 6

var scriptTagRX = regexp.MustCompile(`(?is)<\s*script[^>]*>(.*?)<\s*/\s*script\s*>`)

type SegmentKind string

const (
	SegmentParagraph  SegmentKind = "paragraph"
	SegmentHeading    SegmentKind = "heading"
	SegmentBlockquote SegmentKind = "blockquote"
)

// Segment is one displayable block of a blog's content.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Level int         `json:"level,omitempty"`
	Text  string      `json:"text"`
}

// sanitizeContent drops script elements before content is shown.
func sanitizeContent(content string) string {
	return scriptTagRX.ReplaceAllString(content, "")
}

// Segments splits plain-text content into display blocks, one per non-blank
// line. A line wrapped in double quotes is a blockquote, a line starting with
// '#' is a heading whose level is the number of leading '#' (at most 6), and
// anything else is a paragraph kept as written.
func Segments(content string) []Segment {
	segments := []Segment{}

	for _, line := range strings.Split(sanitizeContent(content), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`):
			segments = append(segments, Segment{Kind: SegmentBlockquote, Text: trimmed[1 : len(trimmed)-1]})
		case strings.HasPrefix(trimmed, "#"):
			text := strings.TrimLeft(trimmed, "#")
			level := len(trimmed) - len(text)
			if level > maxHeadingLevel {
				level = maxHeadingLevel
			}
			segments = append(segments, Segment{Kind: SegmentHeading, Level: level, Text: strings.TrimSpace(text)})
		default:
			segments = append(segments, Segment{Kind: SegmentParagraph, Text: line})
		}
	}

	return segments
}
