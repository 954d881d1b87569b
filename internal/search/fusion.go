package search

import "sort"

// rankedHit is one entry of a ranked id list going into RRF fusion.
type rankedHit struct {
	id    string
	score float64
}

// fusedHit accumulates the RRF contribution for a single id across the two
// input lists, specialized to the scored-candidates + FTS-hits pairing
// this engine fuses.
type fusedHit struct {
	id       string
	rrfScore float64
	rank1    int // position in the scored-candidate list, 1-indexed, 0 if absent
	rank2    int // position in the FTS list, 1-indexed, 0 if absent
	score1   float64
	inBoth   bool
}

// rrfFuse combines two ranked id lists using Reciprocal Rank Fusion with
// K=60. An id only accumulates a contribution from a list it actually
// appears in; absence from a list contributes nothing.
func rrfFuse(list1, list2 []rankedHit) []fusedHit {
	if len(list1) == 0 && len(list2) == 0 {
		return nil
	}

	byID := make(map[string]*fusedHit, len(list1)+len(list2))
	getOrCreate := func(id string) *fusedHit {
		if h, ok := byID[id]; ok {
			return h
		}
		h := &fusedHit{id: id}
		byID[id] = h
		return h
	}

	for i, r := range list1 {
		h := getOrCreate(r.id)
		h.rank1 = i + 1
		h.score1 = r.score
		h.rrfScore += 1.0 / float64(rrfConstant+i+1)
	}
	for i, r := range list2 {
		h := getOrCreate(r.id)
		h.rank2 = i + 1
		if h.rank1 > 0 {
			h.inBoth = true
		}
		h.rrfScore += 1.0 / float64(rrfConstant+i+1)
	}

	out := make([]fusedHit, 0, len(byID))
	for _, h := range byID {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].rrfScore != out[j].rrfScore {
			return out[i].rrfScore > out[j].rrfScore
		}
		if out[i].inBoth != out[j].inBoth {
			return out[i].inBoth
		}
		if out[i].score1 != out[j].score1 {
			return out[i].score1 > out[j].score1
		}
		return out[i].id < out[j].id
	})
	return out
}
