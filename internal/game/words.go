package game

import (
	"math/rand"
	"strings"
)

// Word is a single entry of the shared pool. Once Guessed is set it never
// changes again, and GuessedBy/GuessedInRound are set together with it.
type Word struct {
	ID             WordID `json:"id"`
	Text           string `json:"text"`
	Guessed        bool   `json:"guessed"`
	GuessedBy      TeamID `json:"guessedBy,omitempty"`
	GuessedInRound Round  `json:"guessedInRound,omitempty"`
}

// WordPool owns the collected words in insertion order.
type WordPool struct {
	words map[WordID]*Word
	order []WordID
	newID IDSource
}

func NewWordPool(ids IDSource) *WordPool {
	if ids == nil {
		ids = uuidSource
	}
	return &WordPool{
		words: make(map[WordID]*Word),
		newID: ids,
	}
}

// Add stores a new unguessed word. Text is trimmed; empty text is rejected.
func (p *WordPool) Add(text string) (WordID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrInvalidWord
	}
	id := WordID(p.newID())
	p.words[id] = &Word{ID: id, Text: text}
	p.order = append(p.order, id)
	return id, nil
}

func (p *WordPool) Remove(id WordID) error {
	if _, ok := p.words[id]; !ok {
		return ErrNotFound
	}
	delete(p.words, id)
	for i, wid := range p.order {
		if wid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

func (p *WordPool) Get(id WordID) (Word, bool) {
	w, ok := p.words[id]
	if !ok {
		return Word{}, false
	}
	return *w, true
}

// Words returns copies of all words in insertion order.
func (p *WordPool) Words() []Word {
	out := make([]Word, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.words[id])
	}
	return out
}

func (p *WordPool) Len() int {
	return len(p.order)
}

// Shuffle returns a permutation of the unguessed word ids. The same seed over
// the same pool always yields the same order.
func (p *WordPool) Shuffle(seed int64) []WordID {
	ids := make([]WordID, 0, len(p.order))
	for _, id := range p.order {
		if !p.words[id].Guessed {
			ids = append(ids, id)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}

func (p *WordPool) MarkGuessed(id WordID, by TeamID, in Round) error {
	w, ok := p.words[id]
	if !ok {
		return ErrNotFound
	}
	if w.Guessed {
		return ErrAlreadyGuessed
	}
	w.Guessed = true
	w.GuessedBy = by
	w.GuessedInRound = in
	return nil
}

func (p *WordPool) RemainingUnguessedCount() int {
	n := 0
	for _, w := range p.words {
		if !w.Guessed {
			n++
		}
	}
	return n
}

func (p *WordPool) GuessedCount() int {
	return len(p.words) - p.RemainingUnguessedCount()
}

// restore inserts a word verbatim. Used when rebuilding from a snapshot.
func (p *WordPool) restore(w Word) {
	cp := w
	p.words[w.ID] = &cp
	p.order = append(p.order, w.ID)
}
