package repository

import (
	"prospector_backend/internal/scoring/rules"
)

// ScoringInput projects the stored lead into the attributes the scoring
// engine evaluates. Used when rescoring from persisted data.
func (l Lead) ScoringInput() rules.Input {
	return rules.Input{
		TaxID:             l.TaxID,
		CompanyName:       l.CompanyName,
		TradeName:         l.TradeName,
		ActivityCode:      l.ActivityCode,
		RegisteredCapital: l.RegisteredCapital,
		FoundingDate:      l.FoundingDate,
		PartnerCount:      len(l.Partners),
		State:             l.AddressState,
		AddressValidated:  l.AddressValidated,
		HasCoordinates:    l.Latitude != nil,
	}
}
