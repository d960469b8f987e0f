// Package convert rewrites text typed with an English keyboard while the
// writer meant the Korean 2-set layout.
package convert

import "strings"

// Convert rewrites every space separated token of text. A token that contains
// a key without a mapping is kept as it was, so the result always has as many
// tokens as the input. Applying Convert twice garbles the text.
func Convert(text string) string {
	words := strings.Split(text, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		if h, err := EnglishToHangul(w); err == nil {
			words[i] = h
		}
	}
	return strings.Join(words, " ")
}
