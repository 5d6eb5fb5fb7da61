package extract

import (
	"regexp"
	"strings"
)

var (
	mdCodeFence = regexp.MustCompile("(?s)```.*?```")
	mdImage     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink      = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasis  = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)([^*_~]+)(\*{1,3}|_{1,3}|~~)`)
	mdInline    = regexp.MustCompile("`([^`]*)`")
)

// extractMarkdown strips Markdown syntax, leaving readable prose.
// Code fences are dropped entirely; links and emphasis keep their text.
func extractMarkdown(content []byte) (string, error) {
	text, err := extractPlain(content)
	if err != nil {
		return "", err
	}

	text = mdCodeFence.ReplaceAllString(text, "")
	text = mdImage.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdEmphasis.ReplaceAllString(text, "$2")
	text = mdInline.ReplaceAllString(text, "$1")

	// Collapse runs of blank lines left behind by removed blocks.
	var out []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n"), nil
}
