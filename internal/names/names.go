// internal/names/names.go
package names

import "sync"

var adjectives = []string{
	"Swift", "Mighty", "Clever", "Silent", "Fierce",
	"Gentle", "Wild", "Brave", "Wise", "Nimble",
	"Proud", "Noble", "Sleepy", "Cunning", "Playful",
}

var animals = []string{
	"Fox", "Bear", "Wolf", "Eagle", "Owl",
	"Lion", "Tiger", "Dolphin", "Elephant", "Panther",
	"Hawk", "Deer", "Rabbit", "Raccoon", "Penguin",
}

// Generator hands out room names by walking the animal list on every call and the
// adjective list once per full pass over the animals. It never repeats an animal on
// consecutive calls and uses no random source.
type Generator struct {
	mu   sync.Mutex
	fast int // index into animals
	slow int // index into adjectives
}

// NewGenerator returns a Generator positioned at the first adjective and animal.
func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns the next room name, e.g. "SwiftFox". Safe for concurrent use.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := adjectives[g.slow] + animals[g.fast]

	if g.fast+1 >= len(animals) {
		g.fast = 0
		g.slow++
		if g.slow >= len(adjectives) {
			g.slow = 0
		}
	} else {
		g.fast++
	}

	return name
}
