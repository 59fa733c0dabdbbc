package riddles

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/robalobadob/riddler/assets"
	"github.com/robalobadob/riddler/internal/daily"
)

// Bank is the question bank: riddles indexed by tier.
type Bank struct {
	byTier map[Tier][]Question
	pick   func(n int) int
}

// New builds a bank from qs. Any invalid entry fails the whole load.
func New(qs []Question) (*Bank, error) {
	b := &Bank{byTier: make(map[Tier][]Question), pick: cryptoIntn}
	for i, q := range qs {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("riddle #%d: %w", i, err)
		}
		b.byTier[q.Tier] = append(b.byTier[q.Tier], q)
	}
	return b, nil
}

// Parse decodes a JSON array of riddles into a bank. Every entry must name
// its difficulty; the zero Tier is never assumed.
func Parse(data []byte) (*Bank, error) {
	var qs []Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("decode riddles: %w", err)
	}
	var tiers []struct {
		Difficulty *Tier `json:"difficulty"`
	}
	if err := json.Unmarshal(data, &tiers); err != nil {
		return nil, fmt.Errorf("decode riddles: %w", err)
	}
	for i, t := range tiers {
		if t.Difficulty == nil {
			return nil, fmt.Errorf("riddle #%d: riddle %q has no difficulty", i, qs[i].Title)
		}
	}
	return New(qs)
}

// Load reads a JSON riddle file from path.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() (*Bank, error) {
	data, err := assets.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("read embedded riddles: %w", err)
	}
	return Parse(data)
}

// SetPicker replaces the index chooser used by SelectRandom. pick(n) must
// return a value in [0, n).
func (b *Bank) SetPicker(pick func(n int) int) {
	if pick != nil {
		b.pick = pick
	}
}

// QuestionsFor returns a copy of the riddles for tier.
func (b *Bank) QuestionsFor(t Tier) []Question {
	src := b.byTier[t]
	out := make([]Question, len(src))
	copy(out, src)
	return out
}

// SelectRandom picks uniformly among the riddles for tier. It reports false
// when the tier has no entries.
func (b *Bank) SelectRandom(t Tier) (Question, bool) {
	qs := b.byTier[t]
	if len(qs) == 0 {
		return Question{}, false
	}
	return qs[b.pick(len(qs))], true
}

// SelectDaily returns the riddle of the day for tier.
func (b *Bank) SelectDaily(t Tier, date time.Time, salt string) (Question, bool) {
	qs := b.byTier[t]
	if len(qs) == 0 {
		return Question{}, false
	}
	return qs[daily.Index(date, salt, len(qs))], true
}

// Stats returns the number of riddles per tier.
func (b *Bank) Stats() map[Tier]int {
	out := make(map[Tier]int, len(Tiers))
	for _, t := range Tiers {
		out[t] = len(b.byTier[t])
	}
	return out
}

// cryptoIntn returns a uniformly random index in [0, n).
func cryptoIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
