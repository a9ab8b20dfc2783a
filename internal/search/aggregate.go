package search

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Aggregate merges per-shard passages into one deduplicated list. Passages
// are keyed by a whitespace-normalized content digest; duplicates across
// shards collapse into one entry carrying the best score and the union of
// contributing sources and shards. The result is ordered by descending
// score, with ties broken by ascending fingerprint then ascending chunk
// ordinal, so repeated calls over the same inputs agree byte for byte.
func Aggregate(shards []ShardResult) []AggregatedPassage {
	type group struct {
		rep     AggregatedPassage
		sources map[string]bool
		fps     map[string]bool
	}
	groups := make(map[string]*group)
	var order []string

	for _, shard := range shards {
		for _, p := range shard.Passages {
			key := ContentKey(p.Content)
			g, ok := groups[key]
			if !ok {
				g = &group{
					rep: AggregatedPassage{
						Content: p.Content,
						Page:    p.Page,
						Ordinal: p.Ordinal,
						Score:   p.Score,
					},
					sources: make(map[string]bool),
					fps:     make(map[string]bool),
				}
				groups[key] = g
				order = append(order, key)
			} else if p.Score > g.rep.Score {
				g.rep.Score = p.Score
				g.rep.Content = p.Content
				g.rep.Page = p.Page
				g.rep.Ordinal = p.Ordinal
			}
			g.sources[p.Source] = true
			g.fps[shard.Fingerprint] = true
		}
	}

	out := make([]AggregatedPassage, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		g.rep.Sources = sortedKeys(g.sources)
		g.rep.Shards = sortedKeys(g.fps)
		out = append(out, g.rep)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Shards[0] != out[j].Shards[0] {
			return out[i].Shards[0] < out[j].Shards[0]
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out
}

// ContentKey computes the canonical dedup key for passage text: runs of
// whitespace collapse to single spaces before digesting, so trivial
// formatting differences between shards do not defeat deduplication.
func ContentKey(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
