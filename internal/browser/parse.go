package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wolfman30/expert-call-booker/internal/experts"
	"github.com/wolfman30/expert-call-booker/internal/schedule"
)

// ParseSearchResults extracts candidate experts from the search results markup.
// Profile URLs are resolved against base. limit <= 0 means no cap.
func ParseSearchResults(html string, base *url.URL, sel Selectors, limit int) ([]experts.CandidateIdentity, error) {
	sel = sel.withDefaults()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("browser: parse search results: %w", err)
	}

	var out []experts.CandidateIdentity
	doc.Find(sel.ResultCard).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		href, _ := card.Find(sel.CardLink).First().Attr("href")
		profileURL := resolve(base, href)
		username := strings.TrimSpace(card.AttrOr("data-username", ""))
		if username == "" {
			username = usernameFromPath(profileURL)
		}
		if username == "" {
			return true
		}
		out = append(out, experts.CandidateIdentity{
			Username:         username,
			DisplayName:      collapse(card.Find(sel.CardName).First().Text()),
			ProfileURL:       profileURL,
			ShortDescription: collapse(card.Find(sel.CardHeadline).First().Text()),
		})
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

// ParseSlots extracts the enabled slots from the slot picker markup, in page
// order. Each label is "<date> <time>" as printed on the page.
func ParseSlots(html string, sel Selectors) ([]schedule.SlotCandidate, error) {
	sel = sel.withDefaults()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("browser: parse slots: %w", err)
	}

	var out []schedule.SlotCandidate
	doc.Find(sel.DayGroup).Each(func(_ int, day *goquery.Selection) {
		date := strings.TrimSpace(day.AttrOr("data-date", ""))
		if date == "" {
			return
		}
		day.Find(sel.SlotButton).Each(func(_ int, btn *goquery.Selection) {
			if isDisabled(btn) {
				return
			}
			ref := strings.TrimSpace(btn.AttrOr("data-slot", ""))
			clock := collapse(btn.AttrOr("data-time", btn.Text()))
			if ref == "" || clock == "" {
				return
			}
			out = append(out, schedule.SlotCandidate{
				RawLabel: date + " " + clock,
				Ref:      ref,
			})
		})
	})
	return out, nil
}

func isDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	return strings.EqualFold(s.AttrOr("aria-disabled", ""), "true")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func usernameFromPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
