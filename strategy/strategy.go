// Package strategy holds the closed, ordered table of authoring strategies.
// Trained policies key on the index, so entries are never reordered.
package strategy

import (
	"fmt"
	"strings"
)

type Strategy struct {
	Index       int
	Name        string
	Instruction string
}

var table = [...]Strategy{
	{0, "Friendly-Tech", "Write a warm, approachable post sharing something you find exciting about technology."},
	{1, "Friendly-Lifestyle", "Write a warm, casual post about a small moment from your everyday life."},
	{2, "Professional-Tech", "Write a concise, expert post with a practical insight about technology or software."},
	{3, "Professional-Lifestyle", "Write a polished post with a useful tip about productivity, health or work-life balance."},
	{4, "Controversial-Opinion", "Write a bold post stating a strong opinion that people will want to argue about."},
	{5, "Humorous-Meme", "Write a short, funny post in the style of a meme or a witty observation."},
	{6, "Educational-Tutorial", "Write a post that teaches one concrete thing in a few clear steps."},
	{7, "Inspirational-Story", "Write a short, uplifting story with a lesson people can take away."},
}

func Count() int {
	return len(table)
}

func All() []Strategy {
	out := make([]Strategy, len(table))
	copy(out, table[:])
	return out
}

func Names() []string {
	out := make([]string, len(table))
	for i, s := range table {
		out[i] = s.Name
	}
	return out
}

func ByIndex(i int) (Strategy, bool) {
	if i < 0 || i >= len(table) {
		return Strategy{}, false
	}
	return table[i], true
}

// ByName matches case-insensitively.
func ByName(name string) (Strategy, bool) {
	name = strings.TrimSpace(name)
	for _, s := range table {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Strategy{}, false
}

// Instruction returns the authoring instruction for name. Names outside the
// table get a generic instruction.
func Instruction(name string) string {
	if s, ok := ByName(name); ok {
		return s.Instruction
	}
	return fmt.Sprintf("Write a post about %s.", strings.TrimSpace(name))
}
