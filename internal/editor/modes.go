package editor

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownMode is returned for an edit mode outside the fixed table.
var ErrUnknownMode = errors.New("unknown edit mode")

// Mode names an editing style.
type Mode string

const (
	Shorten   Mode = "shorten"
	Simplify  Mode = "simplify"
	Formalize Mode = "formalize"
)

var systemPrompts = map[Mode]string{
	Shorten:   "You are an editor. Shorten the text while preserving all key information and bullet structure.",
	Simplify:  "You are an editor. Rewrite the text in simpler, clearer language for a general audience.",
	Formalize: "You are an editor. Rewrite the text in a more formal, professional tone.",
}

// ResolveMode returns the system prompt for name.
func ResolveMode(name string) (string, error) {
	prompt, ok := systemPrompts[Mode(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownMode, name, strings.Join(Modes(), ", "))
	}
	return prompt, nil
}

// Modes lists the mode names in sorted order.
func Modes() []string {
	names := make([]string, 0, len(systemPrompts))
	for m := range systemPrompts {
		names = append(names, string(m))
	}
	slices.Sort(names)
	return names
}
