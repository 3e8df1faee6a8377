package domain

// CommunityMembership is the partition result for one card. Levels holds the
// intermediate community ids from the finest level to the final one; the last
// entry equals CommunityID.
type CommunityMembership struct {
	CardID      string
	CommunityID int64
	Levels      []int64
}

type Assignment struct {
	Members    []CommunityMembership
	Modularity float64
}

// Communities groups card ids by final community id.
func (a Assignment) Communities() map[int64][]string {
	out := map[int64][]string{}
	for _, m := range a.Members {
		out[m.CommunityID] = append(out[m.CommunityID], m.CardID)
	}
	return out
}
