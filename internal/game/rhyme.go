// internal/game/rhyme.go
//
// Static rhyme table behind the tip hint.

package game

import "github.com/samber/lo"

// defaultRhyme is offered when the word has no entry in the table.
const defaultRhyme = "similar"

var rhymes = map[string]string{
	"cat":   "hat",
	"dog":   "fog",
	"frog":  "log",
	"light": "night",
	"house": "mouse",
	"train": "rain",
	"stone": "phone",
	"bread": "thread",
	"chair": "bear",
	"plane": "crane",
}

// RhymeFor returns the rhyme tip for word.
func RhymeFor(word string) string {
	return lo.ValueOr(rhymes, word, defaultRhyme)
}
