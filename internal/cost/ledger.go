package cost

import (
	"sort"

	"github.com/steveyegge/codeaudit/internal/types"
)

// Ledger is an append-only list of cost records for one run. It is a value:
// Append returns a new ledger and never mutates the receiver's records.
type Ledger struct {
	records []types.CostRecord
}

// Append returns a ledger with r added.
func (l Ledger) Append(r ...types.CostRecord) Ledger {
	out := make([]types.CostRecord, 0, len(l.records)+len(r))
	out = append(out, l.records...)
	out = append(out, r...)
	return Ledger{records: out}
}

// Records returns a copy of the records in append order.
func (l Ledger) Records() []types.CostRecord {
	return append([]types.CostRecord(nil), l.records...)
}

// Len is the number of records.
func (l Ledger) Len() int {
	return len(l.records)
}

// Totals aggregates a set of records.
type Totals struct {
	Calls            int     `json:"calls"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CachedTokens     int64   `json:"cached_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// TotalTokens is prompt plus completion tokens.
func (t Totals) TotalTokens() int64 {
	return t.PromptTokens + t.CompletionTokens
}

// CacheHitRate is the fraction of prompt tokens served from cache.
func (t Totals) CacheHitRate() float64 {
	if t.PromptTokens == 0 {
		return 0
	}
	return float64(t.CachedTokens) / float64(t.PromptTokens)
}

func (t Totals) add(r types.CostRecord) Totals {
	t.Calls++
	t.PromptTokens += r.PromptTokens
	t.CachedTokens += r.CachedTokens
	t.CompletionTokens += r.CompletionTokens
	t.Cost += r.EstimatedCost
	return t
}

// Totals sums every record.
func (l Ledger) Totals() Totals {
	var t Totals
	for _, r := range l.records {
		t = t.add(r)
	}
	return t
}

// ModelTotals is Totals for one provider/model pair.
type ModelTotals struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Totals
}

// ByModel groups totals by provider and model, sorted by descending cost.
func (l Ledger) ByModel() []ModelTotals {
	type key struct{ provider, model string }
	idx := map[key]int{}
	var out []ModelTotals
	for _, r := range l.records {
		k := key{r.Provider, r.Model}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, ModelTotals{Provider: r.Provider, Model: r.Model})
		}
		out[i].Totals = out[i].Totals.add(r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Cost > out[j].Cost
	})
	return out
}
