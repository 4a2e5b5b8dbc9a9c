package interact

import (
	"context"
	"fmt"
	"strings"
)

const DefaultOpening = "How are you?"

type Turn struct {
	Round   int    `json:"round"`
	Persona string `json:"bot"`
	Reply   string `json:"reply"`
}

// Converse passes a message round-robin through the roster. Each persona
// answers the previous reply. Turns produced before a failure are returned
// with the error.
func (o *Orchestrator) Converse(ctx context.Context, rounds int, opening string) ([]Turn, error) {
	if o.roster.Len() == 0 {
		return nil, ErrEmptyRoster
	}
	message := strings.TrimSpace(opening)
	if message == "" {
		message = DefaultOpening
	}
	turns := make([]Turn, 0, max(rounds, 0))
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return turns, err
		}
		who := o.roster.At(i % o.roster.Len())
		reply, err := o.Agent(who).Reply(ctx, message)
		if err != nil {
			return turns, fmt.Errorf("round %d: %w", i+1, err)
		}
		turns = append(turns, Turn{Round: i + 1, Persona: who.Name, Reply: reply})
		message = reply
	}
	return turns, nil
}
