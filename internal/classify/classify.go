// Package classify decides whether a tweet follows one of the relay
// conventions and rewrites its body accordingly.
package classify

import (
	"regexp"
	"strings"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/config"
	"github.com/tmdnlcl/relay-worker/internal/convert"
)

type Classifier struct {
	hashTag string
	prefix  string
	instant *regexp.Regexp
}

func New(cfg config.PatternConfig) *Classifier {
	pattern := regexp.QuoteMeta(cfg.InstantOpen) + "(.+?)" + regexp.QuoteMeta(cfg.InstantClose)
	return &Classifier{
		hashTag: cfg.HashTag,
		prefix:  cfg.ArchivePrefix,
		instant: regexp.MustCompile(pattern),
	}
}

// Match reports whether text should be handled in the given mode.
func (c *Classifier) Match(mode types.Mode, text string) bool {
	switch mode {
	case types.ModeInstant:
		return strings.Contains(text, c.hashTag) && len(c.Extract(text)) > 0
	case types.ModeArchive:
		return strings.HasPrefix(text, c.prefix)
	}
	return false
}

// Extract returns the text between each pair of instant markers.
func (c *Classifier) Extract(text string) []string {
	var spans []string
	for _, m := range c.instant.FindAllStringSubmatch(text, -1) {
		spans = append(spans, m[1])
	}
	return spans
}

// Render produces the content to publish. In instant mode every marker span
// is replaced by its converted inner text; in archive mode the prefix is cut.
func (c *Classifier) Render(mode types.Mode, text string) string {
	text = strings.TrimSpace(text)
	switch mode {
	case types.ModeInstant:
		// Spans come back in match order.
		spans := c.Extract(text)
		i := 0
		text = c.instant.ReplaceAllStringFunc(text, func(string) string {
			out := convert.Convert(spans[i])
			i++
			return out
		})
	case types.ModeArchive:
		text = c.StripPrefix(text)
	}
	return strings.TrimSpace(text)
}

// StripPrefix removes a leading archive prefix if present.
func (c *Classifier) StripPrefix(text string) string {
	return strings.TrimPrefix(text, c.prefix)
}
