package wizard

import "github.com/koorier/onboarding-api/internal/enum"

// fsaZonesByDC is the catalogue of service FSA zones selectable per
// distribution center. Zones are scoped to one DC; changing the DC replaces
// the selectable set.
var fsaZonesByDC = map[string][]string{
	enum.DCMississauga: {
		"Hamilton", "Burl/Milton/Oakville", "GTA - Brampton", "GTA - Mississauga South",
		"GTA - Mississauga North", "GTA - Etobicoke", "GTA - Vaughan", "Richmond Hill",
		"GTA - North York", "York/HighP/Dover/TrinityB", "Midtown/YorkM/DonM", "Toronto South",
		"GTA - Scarborough South", "GTA - Scarborough North", "GTA - Markham",
		"Pickering/Ajax", "Oshawa/Whitby",
	},
	enum.DCVancouver: {
		"Burnaby/Coquitlam", "Richmond/Delta", "Surrey", "Center Vancouver",
		"Downtown Vancouver", "North West Vancouver",
	},
}

// ZonesForDC returns the selectable FSA zones for a distribution center.
func ZonesForDC(dc string) ([]string, bool) {
	zones, ok := fsaZonesByDC[dc]
	if !ok {
		return nil, false
	}
	out := make([]string, len(zones))
	copy(out, zones)
	return out, true
}
