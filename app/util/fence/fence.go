// Package fence extracts fenced code blocks from model replies.
package fence

import (
	"regexp"
	"strings"
)

var blockRe = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \t]*\r?\n(.*?)```")

type Block struct {
	Lang string
	Body string
}

// Extract returns the first fenced block whose tag matches one of langs
// (case-insensitive). With no langs any tag, including none, is accepted.
func Extract(reply string, langs ...string) (Block, bool) {
	for _, m := range blockRe.FindAllStringSubmatch(reply, -1) {
		lang := strings.ToLower(m[1])
		if len(langs) > 0 && !matches(lang, langs) {
			continue
		}

		return Block{Lang: lang, Body: m[2]}, true
	}

	return Block{}, false
}

func matches(lang string, langs []string) bool {
	for _, l := range langs {
		if strings.EqualFold(l, lang) {
			return true
		}
	}

	return false
}
