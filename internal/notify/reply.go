package notify

import (
	"strings"
)

const wordPunctuation = ".,!?;:()[]\"'"

// words splits text into the lower-cased set of its whitespace-separated
// words with surrounding punctuation removed.
func words(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[strings.Trim(w, wordPunctuation)] = struct{}{}
	}
	return set
}

func containsWord(text, word string) bool {
	_, ok := words(text)[strings.ToLower(word)]
	return ok
}

// matchReply reports whether the subject plus the plain-text body contain any
// keyword as a whole word, returning the lower-cased text when they do.
func matchReply(subject, body string, keywords []string) (string, bool) {
	text := subject
	if body != "" {
		text += " " + body
	}
	set := words(text)
	for _, k := range keywords {
		if _, ok := set[strings.ToLower(k)]; ok {
			return strings.ToLower(text), true
		}
	}
	return "", false
}

// allowed builds the lower-cased sender whitelist.
func allowed(recipients []string) map[string]struct{} {
	set := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		set[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return set
}
