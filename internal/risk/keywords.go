package risk

import "regexp"

// termPattern pairs a compiled expression with the weight it contributes and
// the factor label recorded on the assessment.
type termPattern struct {
	regex  *regexp.Regexp
	weight float64
	label  string
}

// Emergency-tier terms. Any single match forces baseRisk >= 9; two or more
// distinct matches force 10.
var emergencyPatterns = []*termPattern{
	{regex: regexp.MustCompile(`(?i)\bkill(ing)?\s+myself\b`), weight: 10, label: "suicidal_statement"},
	{regex: regexp.MustCompile(`(?i)\bsuicide\b`), weight: 10, label: "suicide_mention"},
	{regex: regexp.MustCompile(`(?i)\bend\s+my\s+life\b`), weight: 10, label: "suicidal_statement"},
	{regex: regexp.MustCompile(`(?i)\btake\s+my\s+(own\s+)?life\b`), weight: 10, label: "suicidal_statement"},
	{regex: regexp.MustCompile(`(?i)\bwant\s+to\s+die\b`), weight: 10, label: "death_wish"},
	{regex: regexp.MustCompile(`(?i)\bbetter\s+off\s+dead\b`), weight: 10, label: "death_wish"},
	{regex: regexp.MustCompile(`(?i)\bend\s+it\s+all\b`), weight: 10, label: "suicidal_statement"},
	{regex: regexp.MustCompile(`(?i)\bno\s+reason\s+to\s+live\b`), weight: 10, label: "death_wish"},
	{regex: regexp.MustCompile(`(?i)\bgoing\s+to\s+do\s+it\b`), weight: 10, label: "imminent_intent"},
	{regex: regexp.MustCompile(`(?i)\boverdose\b`), weight: 10, label: "overdose_mention"},
}

// Crisis terms below the emergency tier, weighted by severity.
var crisisPatterns = []*termPattern{
	{regex: regexp.MustCompile(`(?i)\bpanic\s+attack\b`), weight: 4.0, label: "acute_panic"},
	{regex: regexp.MustCompile(`(?i)\bcan'?t\s+breathe\b`), weight: 3.0, label: "acute_panic"},
	{regex: regexp.MustCompile(`(?i)\b(hurt(ing)?|harm(ing)?)\s+myself\b`), weight: 6.0, label: "self_harm"},
	{regex: regexp.MustCompile(`(?i)\bself[\s-]?harm\b`), weight: 6.0, label: "self_harm"},
	{regex: regexp.MustCompile(`(?i)\bcutting\b`), weight: 5.0, label: "self_harm"},
	{regex: regexp.MustCompile(`(?i)\bcan'?t\s+(go\s+on|take\s+(it|this))\b`), weight: 4.5, label: "overwhelm"},
	{regex: regexp.MustCompile(`(?i)\bbreak(ing)?\s+down\b`), weight: 3.0, label: "acute_distress"},
	{regex: regexp.MustCompile(`(?i)\bcrisis\b`), weight: 2.5, label: "crisis_mention"},
	{regex: regexp.MustCompile(`(?i)\bterrified\b`), weight: 2.0, label: "acute_fear"},
}

// Cognitive distortion markers, each amplifying sentiment risk.
var distortionPatterns = map[string][]*termPattern{
	"hopelessness": {
		{regex: regexp.MustCompile(`(?i)\bhopeless`), label: "hopelessness"},
		{regex: regexp.MustCompile(`(?i)\bno\s+point\b`), label: "hopelessness"},
		{regex: regexp.MustCompile(`(?i)\bnothing\s+matters\b`), label: "hopelessness"},
		{regex: regexp.MustCompile(`(?i)\bnever\s+(get|going\s+to\s+get)\s+better\b`), label: "hopelessness"},
		{regex: regexp.MustCompile(`(?i)\bno\s+way\s+out\b`), label: "hopelessness"},
	},
	"catastrophizing": {
		{regex: regexp.MustCompile(`(?i)\beverything\s+is\s+(ruined|over|falling\s+apart)\b`), label: "catastrophizing"},
		{regex: regexp.MustCompile(`(?i)\bworst\s+thing\b`), label: "catastrophizing"},
		{regex: regexp.MustCompile(`(?i)\bnever\s+recover\b`), label: "catastrophizing"},
		{regex: regexp.MustCompile(`(?i)\bcomplete\s+disaster\b`), label: "catastrophizing"},
	},
	"all_or_nothing": {
		{regex: regexp.MustCompile(`(?i)\b(always|never)\s+\w+\s+(right|wrong)\b`), label: "all_or_nothing"},
		{regex: regexp.MustCompile(`(?i)\bnothing\s+ever\s+works\b`), label: "all_or_nothing"},
		{regex: regexp.MustCompile(`(?i)\bno\s+one\s+ever\b`), label: "all_or_nothing"},
	},
	"personalization": {
		{regex: regexp.MustCompile(`(?i)\b(all\s+)?my\s+fault\b`), label: "personalization"},
		{regex: regexp.MustCompile(`(?i)\bbecause\s+of\s+me\b`), label: "personalization"},
		{regex: regexp.MustCompile(`(?i)\bi'?m\s+to\s+blame\b`), label: "personalization"},
	},
}

// Behavioral indicators.
var (
	planningPatterns = []*termPattern{
		{regex: regexp.MustCompile(`(?i)\b(have|made|got)\s+a\s+plan\b`), label: "planning_language"},
		{regex: regexp.MustCompile(`(?i)\btonight\b`), label: "planning_language"},
		{regex: regexp.MustCompile(`(?i)\bright\s+now\b`), label: "planning_language"},
		{regex: regexp.MustCompile(`(?i)\b(pills|rope|bridge)\b`), label: "planning_language"},
		{regex: regexp.MustCompile(`(?i)\bwrote\s+a\s+(note|letter)\b`), label: "planning_language"},
		{regex: regexp.MustCompile(`(?i)\bgiving\s+away\b`), label: "planning_language"},
	}
	finalityPatterns = []*termPattern{
		{regex: regexp.MustCompile(`(?i)\bgoodbye\b`), label: "finality_language"},
		{regex: regexp.MustCompile(`(?i)\b(last|final)\s+(time|message|words)\b`), label: "finality_language"},
		{regex: regexp.MustCompile(`(?i)\bwon'?t\s+(see|hear\s+from)\s+me\b`), label: "finality_language"},
		{regex: regexp.MustCompile(`(?i)\bfarewell\b`), label: "finality_language"},
	}
	isolationPatterns = []*termPattern{
		{regex: regexp.MustCompile(`(?i)\b(all\s+)?alone\b`), label: "isolation"},
		{regex: regexp.MustCompile(`(?i)\bno\s+one\s+(cares|would\s+notice|to\s+talk\s+to)\b`), label: "isolation"},
		{regex: regexp.MustCompile(`(?i)\bnobody\s+(cares|understands)\b`), label: "isolation"},
		{regex: regexp.MustCompile(`(?i)\bby\s+myself\b`), label: "isolation"},
	}
	futurePatterns = []*termPattern{
		{regex: regexp.MustCompile(`(?i)\btomorrow\b`), label: "future_orientation"},
		{regex: regexp.MustCompile(`(?i)\bnext\s+(week|month|year)\b`), label: "future_orientation"},
		{regex: regexp.MustCompile(`(?i)\blooking\s+forward\b`), label: "future_orientation"},
		{regex: regexp.MustCompile(`(?i)\b(appointment|therapy\s+session)\b`), label: "future_orientation"},
	}
	supportPatterns = []*termPattern{
		{regex: regexp.MustCompile(`(?i)\bmy\s+(friend|family|mom|dad|sister|brother|therapist|partner)\b`), label: "support_network"},
		{regex: regexp.MustCompile(`(?i)\btalked\s+to\s+(someone|my)\b`), label: "support_network"},
	}
	hopePatterns = []*termPattern{
		{regex: regexp.MustCompile(`(?i)\bhope(ful)?\b`), label: "hope_marker"},
		{regex: regexp.MustCompile(`(?i)\b(feeling|getting|doing)\s+better\b`), label: "hope_marker"},
		{regex: regexp.MustCompile(`(?i)\bgrateful\b`), label: "hope_marker"},
		{regex: regexp.MustCompile(`(?i)\bimproving\b`), label: "hope_marker"},
	}
)

// Token lexicons for the fallback sentiment signal when no upstream signal
// is supplied.
var negativeTokens = map[string]struct{}{
	"hopeless": {}, "worthless": {}, "pain": {}, "hurt": {}, "hurting": {},
	"alone": {}, "lonely": {}, "scared": {}, "panic": {}, "attack": {},
	"afraid": {}, "hate": {}, "sad": {}, "depressed": {}, "anxious": {},
	"empty": {}, "numb": {}, "tired": {}, "exhausted": {}, "trapped": {},
	"kill": {}, "die": {}, "dying": {}, "dead": {}, "crying": {}, "down": {},
	"awful": {}, "terrible": {}, "miserable": {}, "suffering": {}, "broken": {},
	"worse": {}, "ashamed": {},
}

var positiveTokens = map[string]struct{}{
	"hope": {}, "hopeful": {}, "better": {}, "thanks": {}, "thankful": {},
	"grateful": {}, "love": {}, "loved": {}, "happy": {}, "improving": {},
	"improved": {}, "safe": {}, "calm": {}, "calmer": {}, "good": {},
	"okay": {}, "fine": {}, "relieved": {}, "supported": {},
}

func matchAll(patterns []*termPattern, message string) []*termPattern {
	var matched []*termPattern
	for _, p := range patterns {
		if p.regex.MatchString(message) {
			matched = append(matched, p)
		}
	}
	return matched
}
