// Package matching implements the volunteer/opportunity scoring engine.
// All functions are pure: they operate on snapshots already fetched from the
// store and never touch the database themselves.
//
// Two scoring policies coexist on purpose and must not be merged:
//
//   - Candidate ranking (RankVolunteers/ScoreVolunteer) is lenient. It is
//     used when an NGO reviews volunteers for one opportunity, so every
//     volunteer stays in the result no matter how badly they score.
//   - Recommendations (RecommendOpportunities) are strict. They feed a
//     volunteer's discovery feed, so an opportunity is dropped outright
//     unless the location matches exactly and at least one skill overlaps.
package matching

import (
	"math"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/volunteerhub/volunteerhub-api/models"
)

// Score weights for candidate ranking.
const (
	locationExactScore     = 30
	locationSubstringScore = 15
	skillsMaxScore         = 50
	availabilityScore      = 20
)

// availabilityWindow is how close an availability entry must be to the
// opportunity date to count.
const availabilityWindow = 30 * 24 * time.Hour

// Breakdown itemizes a candidate score so the NGO UI can show where the
// points came from.
type Breakdown struct {
	Location     int `json:"location"`
	Skills       int `json:"skills"`
	Availability int `json:"availability"`
}

// VolunteerMatch is one scored volunteer in a candidate ranking.
type VolunteerMatch struct {
	VolunteerID primitive.ObjectID `json:"volunteerId"`
	Username    string             `json:"name"`
	Email       string             `json:"email"`
	Location    string             `json:"location"`
	Skills      []string           `json:"skills"`
	MatchScore  int                `json:"matchScore"`
	Breakdown   Breakdown          `json:"breakdown"`
}

// OpportunityMatch is one qualifying opportunity in a recommendation list.
type OpportunityMatch struct {
	Opportunity models.Opportunity `json:"opportunity"`
	MatchScore  int                `json:"matchScore"`
}

// ScoreVolunteer scores a volunteer against an opportunity for candidate
// ranking. The total is always in [0, 100].
func ScoreVolunteer(vol models.User, opp models.Opportunity) Breakdown {
	return Breakdown{
		Location:     locationScore(vol.Location, opp.Location),
		Skills:       skillScore(vol.Skills, opp.Skills),
		Availability: availability(vol.Availability, opp.Date.Time()),
	}
}

// Total sums the breakdown.
func (b Breakdown) Total() int {
	return b.Location + b.Skills + b.Availability
}

// RankVolunteers scores every volunteer against the opportunity and sorts
// descending by total. No volunteer is filtered out; zero scores stay in the
// list for manual review.
func RankVolunteers(vols []models.User, opp models.Opportunity) []VolunteerMatch {
	matches := make([]VolunteerMatch, 0, len(vols))
	for _, vol := range vols {
		b := ScoreVolunteer(vol, opp)
		matches = append(matches, VolunteerMatch{
			VolunteerID: vol.ID,
			Username:    vol.Username,
			Email:       vol.Email,
			Location:    vol.Location,
			Skills:      vol.Skills,
			MatchScore:  b.Total(),
			Breakdown:   b,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

// RecommendOpportunities returns the opportunities that strictly qualify for
// the volunteer, sorted descending by score. An opportunity is skipped
// entirely when the volunteer already applied, when the location is not an
// exact case-insensitive match, or when no skill matches exactly. Qualifying
// opportunities score matchingSkills*50 + 30.
func RecommendOpportunities(vol models.User, opps []models.Opportunity) []OpportunityMatch {
	var matches []OpportunityMatch
	for _, opp := range opps {
		if opp.ApplicationFor(vol.ID) != nil {
			continue
		}
		if vol.Location == "" || opp.Location == "" || !strings.EqualFold(vol.Location, opp.Location) {
			continue
		}
		common := exactSkillMatches(vol.Skills, opp.Skills)
		if common == 0 {
			continue
		}
		matches = append(matches, OpportunityMatch{
			Opportunity: opp,
			MatchScore:  common*50 + locationExactScore,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

// BroadcastEligible reports whether a volunteer should be notified about a
// newly created opportunity. This is a coarse yes/no trigger, not a ranking:
// same location, and either no required skills or at least one exact skill
// overlap.
func BroadcastEligible(vol models.User, opp models.Opportunity) bool {
	if !strings.EqualFold(vol.Location, opp.Location) {
		return false
	}
	if len(opp.Skills) == 0 {
		return true
	}
	return exactSkillMatches(vol.Skills, opp.Skills) > 0
}

func locationScore(volLoc, oppLoc string) int {
	if volLoc == "" || oppLoc == "" {
		return 0
	}
	v := strings.ToLower(volLoc)
	o := strings.ToLower(oppLoc)
	if v == o {
		return locationExactScore
	}
	if strings.Contains(v, o) || strings.Contains(o, v) {
		return locationSubstringScore
	}
	return 0
}

// skillScore gives the full score when the opportunity requires no skills.
// Otherwise a volunteer skill counts when either string contains the other,
// and the score is the matched fraction of required skills, capped at the max.
func skillScore(volSkills, oppSkills []string) int {
	if len(oppSkills) == 0 {
		return skillsMaxScore
	}
	matched := 0
	for _, vs := range volSkills {
		v := strings.ToLower(strings.TrimSpace(vs))
		if v == "" {
			continue
		}
		for _, os := range oppSkills {
			o := strings.ToLower(strings.TrimSpace(os))
			if o == "" {
				continue
			}
			if strings.Contains(v, o) || strings.Contains(o, v) {
				matched++
				break
			}
		}
	}
	score := int(math.Round(float64(matched) / float64(len(oppSkills)) * skillsMaxScore))
	if score > skillsMaxScore {
		score = skillsMaxScore
	}
	return score
}

// availability returns the full availability score when any parseable entry
// falls within the window around the opportunity date. One qualifying entry
// is enough; entries that fail to parse are skipped.
func availability(entries []string, oppDate time.Time) int {
	if oppDate.IsZero() {
		return 0
	}
	for _, entry := range entries {
		t, ok := parseDate(entry)
		if !ok {
			continue
		}
		diff := t.Sub(oppDate)
		if diff < 0 {
			diff = -diff
		}
		if diff <= availabilityWindow {
			return availabilityScore
		}
	}
	return 0
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func exactSkillMatches(volSkills, oppSkills []string) int {
	common := 0
	for _, vs := range volSkills {
		for _, os := range oppSkills {
			if strings.EqualFold(strings.TrimSpace(vs), strings.TrimSpace(os)) {
				common++
				break
			}
		}
	}
	return common
}
