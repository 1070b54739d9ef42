package textgen

import (
	"regexp"
	"strings"

	"github.com/adityaraj-09/faff-assign/internal/models"
)

var (
	urlRe   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)
	emailRe = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`(?:\+\d{1,3}[\s.-]?)?(?:\(\d{3}\)\s?|\b\d{3}[\s.-])\d{3}[\s.-]\d{4}\b`)
)

// ExtractEntities adalah fallback lokal berbasis regex; selalu jalan, dengan atau tanpa generator.
// Hasil dideduplikasi (type+value) dengan urutan kemunculan pertama.
func ExtractEntities(texts ...string) []models.Entity {
	seen := map[models.Entity]struct{}{}
	out := []models.Entity{}
	add := func(typ, val string) {
		e := models.Entity{Type: typ, Value: val}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}

	for _, text := range texts {
		urls := urlRe.FindAllStringIndex(text, -1)
		for _, loc := range urls {
			add(models.EntityURL, strings.TrimRight(text[loc[0]:loc[1]], ".,;:!?)]}"))
		}
		for _, m := range emailRe.FindAllString(text, -1) {
			add(models.EntityEmail, strings.ToLower(m))
		}
		for _, loc := range phoneRe.FindAllStringIndex(text, -1) {
			if insideAny(loc, urls) {
				continue
			}
			add(models.EntityPhone, strings.TrimSpace(text[loc[0]:loc[1]]))
		}
	}
	return out
}

func insideAny(loc []int, spans [][]int) bool {
	for _, s := range spans {
		if loc[0] >= s[0] && loc[1] <= s[1] {
			return true
		}
	}
	return false
}

// MergeEntities menggabungkan beberapa list tanpa duplikat.
func MergeEntities(lists ...[]models.Entity) []models.Entity {
	seen := map[models.Entity]struct{}{}
	out := []models.Entity{}
	for _, list := range lists {
		for _, e := range list {
			e.Type = strings.ToLower(strings.TrimSpace(e.Type))
			e.Value = strings.TrimSpace(e.Value)
			if e.Value == "" {
				continue
			}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
