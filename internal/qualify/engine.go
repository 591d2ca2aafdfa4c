// Package qualify decides whether an expert fits a company, role and price filter.
package qualify

import (
	"strings"

	"github.com/wolfman30/expert-call-booker/internal/experts"
)

// Reason explains why a profile did not qualify.
type Reason string

const (
	// ReasonNone is set on a qualified result.
	ReasonNone Reason = ""
	// ReasonCriteriaMismatch means company or role was not found in the profile.
	ReasonCriteriaMismatch Reason = "criteria mismatch"
	// ReasonNoAffordableLiveService means the profile matched but no live
	// service fits the price ceiling.
	ReasonNoAffordableLiveService Reason = "no affordable live service"
)

// Result is the qualification decision for one candidate.
// Matched implies len(QualifyingServices) > 0.
type Result struct {
	Candidate          experts.CandidateIdentity
	Profile            *experts.Profile
	QualifyingServices []experts.ServiceOffering
	CriteriaMatched    bool
	Matched            bool
	Reason             Reason
}

// Engine applies company, role and price/type rules to a profile.
type Engine struct {
	synonyms RoleSynonyms
}

// NewEngine builds an engine. A nil table uses DefaultRoleSynonyms.
func NewEngine(synonyms RoleSynonyms) *Engine {
	if synonyms == nil {
		synonyms = DefaultRoleSynonyms
	}
	return &Engine{synonyms: synonyms}
}

// Qualify evaluates profile against the target company, role and price ceiling.
func (e *Engine) Qualify(candidate experts.CandidateIdentity, profile *experts.Profile, targetCompany, targetRole string, maxPrice float64) Result {
	res := Result{Candidate: candidate, Profile: profile}
	if profile == nil {
		res.Reason = ReasonCriteriaMismatch
		return res
	}

	text := normalize(profile.SearchableText())
	if !matchesCompany(text, targetCompany) || !e.matchesRole(text, targetRole) {
		res.Reason = ReasonCriteriaMismatch
		return res
	}
	res.CriteriaMatched = true

	res.QualifyingServices = AffordableLiveServices(profile.Services, maxPrice)
	if len(res.QualifyingServices) == 0 {
		res.Reason = ReasonNoAffordableLiveService
		return res
	}
	res.Matched = true
	return res
}

// AffordableLiveServices keeps live services priced at or below maxPrice, in
// their original order.
func AffordableLiveServices(services []experts.ServiceOffering, maxPrice float64) []experts.ServiceOffering {
	out := make([]experts.ServiceOffering, 0, len(services))
	for _, svc := range services {
		if svc.Price.Amount <= maxPrice && svc.Type.IsLive() {
			out = append(out, svc)
		}
	}
	return out
}

func matchesCompany(text, company string) bool {
	company = normalize(company)
	return company != "" && strings.Contains(text, company)
}

func (e *Engine) matchesRole(text, role string) bool {
	for _, v := range e.synonyms.Variations(role) {
		if strings.Contains(text, v) {
			return true
		}
	}
	return false
}
