package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reliefmap/backend/internal/domain/entities"
	"github.com/reliefmap/backend/pkg/utils"
)

const (
	maxDescriptionKeywords = 3
	maxReviewExcerpts      = 2
	maxExcerptLength       = 180
)

// reviewStopwords are skipped during keyword extraction from review text.
var reviewStopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "always": {},
	"been": {}, "before": {}, "being": {}, "came": {}, "could": {},
	"didn": {}, "does": {}, "doesn": {}, "done": {}, "down": {},
	"even": {}, "every": {}, "from": {}, "have": {}, "here": {},
	"just": {}, "like": {}, "made": {}, "more": {}, "most": {},
	"much": {}, "never": {}, "only": {}, "other": {}, "over": {},
	"really": {}, "said": {}, "some": {}, "such": {}, "than": {},
	"that": {}, "them": {}, "then": {}, "there": {}, "they": {},
	"this": {}, "very": {}, "well": {}, "went": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "will": {},
	"with": {}, "would": {}, "your": {},
}

// synthesizeDescription builds the long-form directory text from structured
// facts. Pure string templating: the same clinic and reviews always produce
// the same text, and a paragraph is emitted only when its facts are present.
// The scraped description, when available, leads the narrative.
func synthesizeDescription(clinic *entities.Clinic, reviews []entities.Review, scrapedDescription string) string {
	var paragraphs []string

	if scraped := strings.TrimSpace(scrapedDescription); scraped != "" {
		paragraphs = append(paragraphs, utils.StripHTML(scraped))
	}

	if intro := introParagraph(clinic); intro != "" {
		paragraphs = append(paragraphs, intro)
	}
	if reputation := reputationParagraph(clinic, reviews); reputation != "" {
		paragraphs = append(paragraphs, reputation)
	}
	if excerpts := excerptParagraph(reviews); excerpts != "" {
		paragraphs = append(paragraphs, excerpts)
	}
	if amenities := amenityParagraph(clinic); amenities != "" {
		paragraphs = append(paragraphs, amenities)
	}
	if hours := hoursParagraph(clinic); hours != "" {
		paragraphs = append(paragraphs, hours)
	}
	if contact := contactParagraph(clinic); contact != "" {
		paragraphs = append(paragraphs, contact)
	}

	return strings.Join(paragraphs, "\n\n")
}

func introParagraph(clinic *entities.Clinic) string {
	location := clinic.Address.City
	if clinic.Address.State != "" {
		if location != "" {
			location += ", "
		}
		location += clinic.Address.State
	}

	switch {
	case clinic.Category != "" && location != "":
		return fmt.Sprintf("%s is a %s located in %s.", clinic.Name, strings.ToLower(clinic.Category), location)
	case location != "":
		return fmt.Sprintf("%s is located in %s.", clinic.Name, location)
	case clinic.Category != "":
		return fmt.Sprintf("%s is a %s.", clinic.Name, strings.ToLower(clinic.Category))
	default:
		return ""
	}
}

func reputationParagraph(clinic *entities.Clinic, reviews []entities.Review) string {
	if clinic.Rating <= 0 || clinic.ReviewCount <= 0 {
		return ""
	}

	sentence := fmt.Sprintf("The clinic holds a %.1f-star rating across %d reviews.", clinic.Rating, clinic.ReviewCount)
	if keywords := extractKeywords(reviews, maxDescriptionKeywords); len(keywords) > 0 {
		sentence += fmt.Sprintf(" Patients frequently mention %s.", joinNaturally(keywords))
	}
	return sentence
}

func excerptParagraph(reviews []entities.Review) string {
	var excerpts []string
	for _, review := range reviews {
		if len(excerpts) >= maxReviewExcerpts {
			break
		}
		text := utils.StripHTML(review.Text)
		if text == "" {
			continue
		}
		excerpts = append(excerpts, fmt.Sprintf("One patient shared: \"%s\"", utils.Truncate(text, maxExcerptLength)))
	}
	return strings.Join(excerpts, " ")
}

func amenityParagraph(clinic *entities.Clinic) string {
	if len(clinic.Amenities) == 0 {
		return ""
	}
	return fmt.Sprintf("Amenities include %s.", joinNaturally(clinic.Amenities))
}

func hoursParagraph(clinic *entities.Clinic) string {
	var open []string
	var closed []string
	for _, entry := range clinic.Hours {
		switch {
		case entry.Hours == entities.HoursPlaceholder:
			continue
		case strings.EqualFold(entry.Hours, "Closed"):
			closed = append(closed, entry.Day)
		default:
			open = append(open, fmt.Sprintf("%s %s", entry.Day, entry.Hours))
		}
	}

	var sentences []string
	if len(open) > 0 {
		sentences = append(sentences, fmt.Sprintf("The clinic is open %s.", strings.Join(open, ", ")))
	}
	if len(closed) > 0 {
		sentences = append(sentences, fmt.Sprintf("Closed on %s.", joinNaturally(closed)))
	}
	return strings.Join(sentences, " ")
}

func contactParagraph(clinic *entities.Clinic) string {
	switch {
	case clinic.Phone != "" && clinic.Website != "":
		return fmt.Sprintf("For appointments, call %s or visit %s.", clinic.Phone, clinic.Website)
	case clinic.Phone != "":
		return fmt.Sprintf("For appointments, call %s.", clinic.Phone)
	case clinic.Website != "":
		return fmt.Sprintf("For appointments, visit %s.", clinic.Website)
	default:
		return ""
	}
}

// extractKeywords counts non-stopword words of four letters or more across
// review text and returns the top entries, ranked by count and then
// alphabetically so output is deterministic.
func extractKeywords(reviews []entities.Review, limit int) []string {
	counts := make(map[string]int)
	for _, review := range reviews {
		text := strings.ToLower(utils.StripHTML(review.Text))
		for _, word := range strings.FieldsFunc(text, func(r rune) bool {
			return r < 'a' || r > 'z'
		}) {
			if len(word) < 4 {
				continue
			}
			if _, skip := reviewStopwords[word]; skip {
				continue
			}
			counts[word]++
		}
	}

	if len(counts) == 0 {
		return nil
	}

	words := make([]string, 0, len(counts))
	for word, count := range counts {
		if count >= 2 {
			words = append(words, word)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

func joinNaturally(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
