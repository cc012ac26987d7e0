package analytics

import "sort"

const (
	// TopScriptsLimit caps the ranking length
	TopScriptsLimit = 10
	// UnknownTitle and UnknownCategory stand in for content ids missing from the catalog
	UnknownTitle    = "Unknown"
	UnknownCategory = "Unknown"
)

// RankedContent is one row of the top scripts ranking
type RankedContent struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	Uses      int    `json:"uses"`
}

// RankContent counts uses per content id, resolves titles against catalog and
// returns at most limit entries ordered by uses descending, then title, then id.
// Ids missing from the catalog keep their count under the Unknown sentinel.
// Events without a content id are skipped.
func RankContent(uses []UsageEvent, catalog []ContentItem, limit int) []RankedContent {
	counts := make(map[string]int)
	for _, e := range uses {
		if e.ContentID == "" {
			continue
		}
		counts[e.ContentID]++
	}

	byID := make(map[string]ContentItem, len(catalog))
	for _, item := range catalog {
		byID[item.ID] = item
	}

	ranked := make([]RankedContent, 0, len(counts))
	for id, n := range counts {
		entry := RankedContent{ContentID: id, Title: UnknownTitle, Category: UnknownCategory, Uses: n}
		if item, ok := byID[id]; ok {
			entry.Title = item.Title
			entry.Category = item.Category
		}
		ranked = append(ranked, entry)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Uses != b.Uses {
			return a.Uses > b.Uses
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ContentID < b.ContentID
	})

	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
