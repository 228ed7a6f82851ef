package escalation

import "strings"

// Route is the geographic routing result for an escalation: which numbers to
// dial and which languages local services support.
type Route struct {
	Region           string   `json:"region"`
	EmergencyNumbers []string `json:"emergency_numbers"`
	HotlineNumbers   []string `json:"hotline_numbers"`
	Languages        []string `json:"languages"`
	NeedsReview      bool     `json:"needs_review,omitempty"`
}

var routeTable = map[string]Route{
	"US": {
		Region:           "US",
		EmergencyNumbers: []string{"911"},
		HotlineNumbers:   []string{"988"},
		Languages:        []string{"en", "es"},
	},
	"CA": {
		Region:           "CA",
		EmergencyNumbers: []string{"911"},
		HotlineNumbers:   []string{"988", "1-833-456-4566"},
		Languages:        []string{"en", "fr"},
	},
	"GB": {
		Region:           "GB",
		EmergencyNumbers: []string{"999", "112"},
		HotlineNumbers:   []string{"116 123"},
		Languages:        []string{"en"},
	},
	"AU": {
		Region:           "AU",
		EmergencyNumbers: []string{"000"},
		HotlineNumbers:   []string{"13 11 14"},
		Languages:        []string{"en"},
	},
	"DE": {
		Region:           "DE",
		EmergencyNumbers: []string{"112"},
		HotlineNumbers:   []string{"0800 111 0 111"},
		Languages:        []string{"de", "en"},
	},
	"FR": {
		Region:           "FR",
		EmergencyNumbers: []string{"112", "15"},
		HotlineNumbers:   []string{"3114"},
		Languages:        []string{"fr", "en"},
	},
	"IN": {
		Region:           "IN",
		EmergencyNumbers: []string{"112"},
		HotlineNumbers:   []string{"9152987821"},
		Languages:        []string{"hi", "en"},
	},
}

// defaultRoute is used for unrecognized regions and is flagged for manual
// review so routing coverage gaps are visible.
var defaultRoute = Route{
	Region:           "DEFAULT",
	EmergencyNumbers: []string{"911", "112"},
	HotlineNumbers:   []string{"988"},
	Languages:        []string{"en"},
}

// ResolveRoute looks up the routing table for a region code. Unknown regions
// fall back to the default table with NeedsReview set.
func ResolveRoute(region string) Route {
	region = strings.ToUpper(strings.TrimSpace(region))
	if route, ok := routeTable[region]; ok {
		return route
	}
	route := defaultRoute
	route.NeedsReview = true
	return route
}
