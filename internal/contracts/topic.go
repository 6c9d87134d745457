package contracts

import (
	"strings"
	"unicode"
)

// TopicPrefix is prepended to every derived topic.
const TopicPrefix = "albion.event"

// TopicFor derives the routing topic from a contract name:
// "PlayerSpottedV1" becomes "albion.event.player.spotted.v1". Names without
// a version suffix are treated as v1.
func TopicFor(contractName string) string {
	base, version := splitVersion(contractName)

	parts := []string{TopicPrefix}
	parts = append(parts, splitWords(base)...)
	parts = append(parts, "v"+version)
	return strings.Join(parts, ".")
}

func splitVersion(name string) (string, string) {
	i := len(name)
	for i > 0 && unicode.IsDigit(rune(name[i-1])) {
		i--
	}
	if i < len(name) && i > 0 && name[i-1] == 'V' {
		return name[:i-1], name[i:]
	}
	return name, "1"
}

// splitWords breaks a CamelCase identifier into lower-case words. Runs of
// capitals are kept together: "NPCSpawned" gives "npc", "spawned".
func splitWords(s string) []string {
	runes := []rune(s)
	var words []string
	start := 0

	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev))
		if !boundary && unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}
		if boundary {
			words = append(words, strings.ToLower(string(runes[start:i])))
			start = i
		}
	}
	if start < len(runes) {
		words = append(words, strings.ToLower(string(runes[start:])))
	}
	return words
}
