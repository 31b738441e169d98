package rules

// stateRegions is the fixed state-to-macro-region table used by the region
// category and by enrichment mapping.
var stateRegions = map[string]string{
	"AC": "Norte",
	"AL": "Nordeste",
	"AP": "Norte",
	"AM": "Norte",
	"BA": "Nordeste",
	"CE": "Nordeste",
	"DF": "Centro-Oeste",
	"ES": "Sudeste",
	"GO": "Centro-Oeste",
	"MA": "Nordeste",
	"MT": "Centro-Oeste",
	"MS": "Centro-Oeste",
	"MG": "Sudeste",
	"PA": "Norte",
	"PB": "Nordeste",
	"PR": "Sul",
	"PE": "Nordeste",
	"PI": "Nordeste",
	"RJ": "Sudeste",
	"RN": "Nordeste",
	"RS": "Sul",
	"RO": "Norte",
	"RR": "Norte",
	"SC": "Sul",
	"SP": "Sudeste",
	"SE": "Nordeste",
	"TO": "Norte",
}

// RegionForState resolves a state code to its macro-region, or "" when unknown.
func RegionForState(state string) string {
	return stateRegions[state]
}
