package council

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// rankingMarker introduces the structured section rankers are instructed to
// end their response with.
const rankingMarker = "FINAL RANKING:"

var (
	numberedLabelPattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	labelPattern         = regexp.MustCompile(`Response [A-Z]`)
)

// ParseRanking extracts an ordered list of anonymized labels from a model's
// free text ranking response. Tiers, first hit wins:
//
//  1. numbered entries ("1. Response B") inside the FINAL RANKING section,
//     taken in document order (the leading numbers are not trusted)
//  2. bare label tokens inside that section
//  3. bare label tokens anywhere in the text
//
// It never fails: text with no recognizable labels yields an empty slice.
// Duplicate occurrences are preserved.
func ParseRanking(text string) []string {
	if idx := strings.Index(text, rankingMarker); idx >= 0 {
		section := text[idx+len(rankingMarker):]

		numbered := numberedLabelPattern.FindAllString(section, -1)
		if len(numbered) > 0 {
			labels := make([]string, len(numbered))
			for i, m := range numbered {
				labels[i] = labelPattern.FindString(m)
			}
			return labels
		}

		if labels := labelPattern.FindAllString(section, -1); len(labels) > 0 {
			return labels
		}
	}

	labels := labelPattern.FindAllString(text, -1)
	if labels == nil {
		return []string{}
	}
	return labels
}

// AggregateRankings converts per-model rankings plus the label map into a
// best-to-worst ordering. The 1-based position of each parsed label counts
// as one vote for the model it maps to; labels missing from the map are
// ignored. Models with equal average rank keep their first-observed relative
// order (the sort is stable). Models with zero votes are absent.
func AggregateRankings(stage2 []StageTwoEntry, labelToModel map[string]string) []AggregateRank {
	positions := make(map[string][]int)
	var order []string // first-observed order, anchors tie stability

	for _, entry := range stage2 {
		if entry.Error != nil {
			continue
		}
		for i, label := range entry.ParsedRanking {
			model, ok := labelToModel[label]
			if !ok {
				continue
			}
			if _, seen := positions[model]; !seen {
				order = append(order, model)
			}
			positions[model] = append(positions[model], i+1)
		}
	}

	aggregate := make([]AggregateRank, 0, len(order))
	for _, model := range order {
		ranks := positions[model]
		sum := 0
		for _, r := range ranks {
			sum += r
		}
		avg := float64(sum) / float64(len(ranks))
		aggregate = append(aggregate, AggregateRank{
			Model:         model,
			AverageRank:   math.Round(avg*100) / 100,
			RankingsCount: len(ranks),
		})
	}

	sort.SliceStable(aggregate, func(i, j int) bool {
		return aggregate[i].AverageRank < aggregate[j].AverageRank
	})

	return aggregate
}
