package clangast

import (
	"regexp"
	"strings"
)

var firstBlockCommentRe = regexp.MustCompile(`(?s)/\*(.*?)\*/`)

// CommentText returns the source text covered by a FullComment node.  The
// source must be the header exactly as stored on disk (original line
// endings), otherwise clang's byte offsets do not line up.
func CommentText(c *Node, source []byte) string {
	if c == nil {
		return ""
	}
	if c.Text != "" {
		return strings.TrimRight(c.Text, " \t\r\n")
	}
	if c.Range == nil || c.Range.Begin.Offset == nil || c.Range.End.Offset == nil {
		return ""
	}
	begin := *c.Range.Begin.Offset
	end := *c.Range.End.Offset + 1
	if begin < 0 || begin >= len(source) || end <= begin {
		return ""
	}
	if end > len(source) {
		end = len(source)
	}
	return strings.TrimRight(string(source[begin:end]), " \t\r\n")
}

// HeaderComment returns the first block comment of a header when it looks
// like a project banner (mentions "Project URL"), otherwise "".
func HeaderComment(source []byte) string {
	m := firstBlockCommentRe.FindSubmatch(source)
	if m == nil {
		return ""
	}
	text := string(m[1])
	if !strings.Contains(text, "Project URL") {
		return ""
	}
	return text
}
