package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joshp123/omhome/internal/entity"
)

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(" ", "_", "-", "_", "__", "_")
	name = replacer.Replace(name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}

// resolveEntity accepts an entity key or a name. Keys win over names; a name
// shared by several entities is an error listing their keys.
func resolveEntity(platform entity.Platform, input string, states []entity.State) (string, error) {
	for _, state := range states {
		if state.Key == input {
			return state.Key, nil
		}
	}

	needle := normalizeName(input)
	var matches []string
	for _, state := range states {
		if normalizeName(state.Name) == needle {
			matches = append(matches, state.Key)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		available := make([]string, 0, len(states))
		for _, state := range states {
			available = append(available, state.Name)
		}
		sort.Strings(available)
		return "", fmt.Errorf("%s %q not found. Available: %s", kind(platform), input, strings.Join(available, ", "))
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("%s %q is ambiguous, use one of: %s", kind(platform), input, strings.Join(matches, ", "))
	}
}

func kind(platform entity.Platform) string {
	if platform == "" {
		return "entity"
	}
	return string(platform)
}
