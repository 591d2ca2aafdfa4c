// Package experts holds the marketplace data model shared by search, qualification and booking.
package experts

import (
	"fmt"
	"strings"
)

// CandidateIdentity is an expert discovered by the search step, before qualification.
// Username is the identity key.
type CandidateIdentity struct {
	Username         string `json:"username"`
	DisplayName      string `json:"displayName"`
	ProfileURL       string `json:"profileUrl"`
	ShortDescription string `json:"shortDescription,omitempty"`
}

// Profile is the expert profile fetched from the marketplace API.
type Profile struct {
	ID       string            `json:"id"`
	Username string            `json:"username"`
	FullName string            `json:"fullName"`
	Headline string            `json:"headline"`
	Bio      string            `json:"bio"`
	Timezone string            `json:"timezone"`
	Services []ServiceOffering `json:"services"`
}

// SearchableText is the text company and role criteria are matched against.
func (p *Profile) SearchableText() string {
	if p == nil {
		return ""
	}
	return strings.Join([]string{p.FullName, p.Headline, p.Bio}, " ")
}

// Money is a price in a single currency.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

func (m Money) String() string {
	if m.Amount == 0 {
		return "FREE"
	}
	return fmt.Sprintf("%.2f %s", m.Amount, strings.ToUpper(m.Currency))
}

// ServiceOffering is one bookable product on an expert's page.
type ServiceOffering struct {
	ID              string      `json:"serviceId"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Price           Money       `json:"price"`
	Type            ServiceType `json:"serviceType"`
	DurationMinutes int         `json:"durationMinutes,omitempty"`
}
