package services

import (
	"strings"
	"testing"

	"github.com/reliefmap/backend/internal/domain/entities"
)

func TestSynthesizeDescriptionIsDeterministic(t *testing.T) {
	clinic := &entities.Clinic{
		Name:     "Springfield Pain Clinic",
		Category: "Pain Management Clinic",
		Address: entities.Address{
			City:  "Springfield",
			State: "Illinois",
		},
		Rating:      4.5,
		ReviewCount: 32,
		Phone:       "555-0100",
		Website:     "https://clinic.example",
		Amenities:   []string{"Wheelchair accessible", "On-site parking"},
		Hours: []entities.HoursEntry{
			{Day: "Monday", Hours: "9 AM to 5 PM"},
			{Day: "Sunday", Hours: "Closed"},
		},
	}
	reviews := []entities.Review{
		{Text: "Friendly staff, the staff here is friendly and professional"},
		{Text: "Very professional staff"},
	}

	first := synthesizeDescription(clinic, reviews, "")
	second := synthesizeDescription(clinic, reviews, "")
	if first != second {
		t.Fatalf("description not deterministic:\n%s\n---\n%s", first, second)
	}

	for _, fragment := range []string{
		"Springfield Pain Clinic is a pain management clinic located in Springfield, Illinois.",
		"holds a 4.5-star rating across 32 reviews",
		"One patient shared:",
		"Amenities include Wheelchair accessible and On-site parking.",
		"open Monday 9 AM to 5 PM",
		"Closed on Sunday.",
		"call 555-0100 or visit https://clinic.example",
	} {
		if !strings.Contains(first, fragment) {
			t.Errorf("description missing %q:\n%s", fragment, first)
		}
	}
}

func TestSynthesizeDescriptionScrapedTextLeads(t *testing.T) {
	clinic := &entities.Clinic{
		Name:    "Clinic",
		Address: entities.Address{City: "Springfield"},
	}

	out := synthesizeDescription(clinic, nil, "<p>A &amp; B clinic.</p>")
	if !strings.HasPrefix(out, "A & B clinic.") {
		t.Errorf("scraped description should lead after HTML strip, got:\n%s", out)
	}
}

func TestSynthesizeDescriptionOmitsEmptyParagraphs(t *testing.T) {
	clinic := &entities.Clinic{Name: "Clinic", Address: entities.Address{City: "Springfield"}}

	out := synthesizeDescription(clinic, nil, "")
	if out != "Clinic is located in Springfield." {
		t.Errorf("unexpected description: %q", out)
	}
}

func TestExtractKeywords(t *testing.T) {
	reviews := []entities.Review{
		{Text: "The staff was friendly and the staff was quick"},
		{Text: "friendly staff, short wait"},
		{Text: "wait was short"},
	}

	keywords := extractKeywords(reviews, 3)

	// staff x3, friendly x2, wait x2, short x2; ties break alphabetically.
	want := []string{"staff", "friendly", "short"}
	if len(keywords) != len(want) {
		t.Fatalf("got %v, want %v", keywords, want)
	}
	for i := range want {
		if keywords[i] != want[i] {
			t.Errorf("keyword[%d] = %q, want %q (full: %v)", i, keywords[i], want[i], keywords)
		}
	}
}

func TestJoinNaturally(t *testing.T) {
	tests := []struct {
		items []string
		want  string
	}{
		{nil, ""},
		{[]string{"one"}, "one"},
		{[]string{"one", "two"}, "one and two"},
		{[]string{"one", "two", "three"}, "one, two and three"},
	}
	for _, tt := range tests {
		if got := joinNaturally(tt.items); got != tt.want {
			t.Errorf("joinNaturally(%v) = %q, want %q", tt.items, got, tt.want)
		}
	}
}
