package handler

import (
	"strings"
	"unicode"
)

// ParseMentionLabels extracts the @name labels from a comment message,
// in order of appearance, without duplicates. A label runs from the '@'
// to the first rune that cannot be part of a name.
func ParseMentionLabels(message string) []string {
	var labels []string
	seen := make(map[string]bool)

	runes := []rune(message)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '@' {
			continue
		}
		j := i + 1
		for j < len(runes) && isNameRune(runes[j]) {
			j++
		}
		if j == i+1 {
			continue // bare '@'
		}
		label := string(runes[i+1 : j])
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
		i = j - 1
	}
	return labels
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

// ResolveMentions maps mention labels to user ids using the known
// name -> id table (case-insensitive). Labels with no known user stay
// literal text and come back as unresolved.
func ResolveMentions(labels []string, known map[string]int64) (ids []int64, unresolved []string) {
	folded := make(map[string]int64, len(known))
	for name, id := range known {
		folded[strings.ToLower(name)] = id
	}

	added := make(map[int64]bool)
	for _, label := range labels {
		if id, ok := folded[strings.ToLower(label)]; ok {
			if !added[id] {
				added[id] = true
				ids = append(ids, id)
			}
		} else {
			unresolved = append(unresolved, label)
		}
	}
	return ids, unresolved
}
