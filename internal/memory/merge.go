// Package memory extracts remembered facts from an utterance and merges them
// into the session memory snapshot.
package memory

import (
	"eino_voice_shop/pkg"
	"regexp"
	"strconv"
	"strings"
)

var (
	tokenPattern     = regexp.MustCompile(`(?i)(?:token|customer token):\s*([a-zA-Z0-9._-]+)`)
	latitudePattern  = regexp.MustCompile(`(?i)(?:lat|latitude):\s*([\d.-]+)`)
	longitudePattern = regexp.MustCompile(`(?i)(?:long|longitude):\s*([\d.-]+)`)

	addPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:add|put|include|need|want|buy|get|pick up|remember to)\s+([^.!?]*)`),
		regexp.MustCompile(`\b(?:i need|i want|i should get|let me add|don't forget)\s+([^.!?]*)`),
	}
	// Recognized only. Nothing is removed from the list.
	removePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:remove|delete|got|bought|finished|done with|no longer need)\s+([^.!?]*)`),
		regexp.MustCompile(`\b(?:i got|i bought|i have|i don't need)\s+([^.!?]*)`),
	}
	preferencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bi (?:like|love|enjoy|prefer|hate|dislike)\s+([^.!?]*)`),
		regexp.MustCompile(`\bmy favorite\s+([^.!?]*)`),
	}

	itemSeparator = regexp.MustCompile(`,|\sand\s`)
	stopWords     = map[string]bool{"to": true, "the": true, "a": true, "an": true, "some": true, "any": true}
)

// Extraction is what one utterance contributes to memory
type Extraction struct {
	Token     string
	Location  *pkg.Location
	Shopping  []string
	Interests []string
	Removals  []string
}

// Extract reads entities out of the utterance without touching any memory
func Extract(utterance string) Extraction {
	var ex Extraction

	// Token keeps its original case, the last occurrence wins.
	if all := tokenPattern.FindAllStringSubmatch(utterance, -1); len(all) > 0 {
		ex.Token = all[len(all)-1][1]
	}

	if loc, ok := extractLocation(utterance); ok {
		ex.Location = &loc
	}

	lower := strings.ToLower(utterance)
	for _, re := range addPatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			ex.Shopping = appendUnique(ex.Shopping, splitItems(m[1])...)
		}
	}
	for _, re := range preferencePatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			if pref := strings.TrimSpace(m[1]); len(pref) > 2 {
				ex.Interests = appendUnique(ex.Interests, pref)
			}
		}
	}
	for _, re := range removePatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			ex.Removals = appendUnique(ex.Removals, splitItems(m[1])...)
		}
	}

	return ex
}

// Merge returns an updated copy of mem. The input snapshot is never modified
// and merging the same utterance twice gives the same result as once.
// reply is accepted for symmetry with the turn contract; facts are only
// taken from what the user said.
func Merge(utterance, reply string, mem pkg.Memory) pkg.Memory {
	return Apply(mem, Extract(utterance))
}

// Apply folds an extraction into a copy of mem
func Apply(mem pkg.Memory, ex Extraction) pkg.Memory {
	out := mem.Clone()

	if ex.Token != "" {
		out.CustomerToken = ex.Token
	}
	if ex.Location != nil {
		loc := *ex.Location
		out.Location = &loc
	}
	for _, item := range ex.Shopping {
		if !out.HasShoppingItem(item) {
			out.Lists.Shopping = append(out.Lists.Shopping, item)
		}
	}
	for _, pref := range ex.Interests {
		if !contains(out.Preferences.Interests, pref) {
			out.Preferences.Interests = append(out.Preferences.Interests, pref)
		}
	}
	if out.Context == nil {
		out.Context = map[string]any{}
	}

	return out
}

func extractLocation(utterance string) (pkg.Location, bool) {
	latMatch := latitudePattern.FindStringSubmatch(utterance)
	longMatch := longitudePattern.FindStringSubmatch(utterance)
	if latMatch == nil || longMatch == nil {
		return pkg.Location{}, false
	}
	lat, err := strconv.ParseFloat(latMatch[1], 64)
	if err != nil {
		return pkg.Location{}, false
	}
	long, err := strconv.ParseFloat(longMatch[1], 64)
	if err != nil {
		return pkg.Location{}, false
	}
	return pkg.Location{Lat: lat, Long: long}, true
}

func splitItems(tail string) []string {
	var items []string
	for _, item := range itemSeparator.Split(tail, -1) {
		item = strings.TrimSpace(item)
		if len(item) <= 2 || stopWords[item] {
			continue
		}
		items = append(items, item)
	}
	return items
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}

func contains(list []string, item string) bool {
	for _, existing := range list {
		if existing == item {
			return true
		}
	}
	return false
}
