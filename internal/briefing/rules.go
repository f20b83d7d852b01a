package briefing

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// Message is a user utterance prepared once for all matchers.
type Message struct {
	Raw       string
	Lower     string
	Sentences []string
	Tokens    []string // lowercase runs of letters, digits and hyphens
}

var sentenceSplit = regexp.MustCompile(`[.!?;\n]+`)

// NewMessage splits text into sentences and tokens.
func NewMessage(text string) *Message {
	m := &Message{Raw: text, Lower: strings.ToLower(text)}
	for _, s := range sentenceSplit.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			m.Sentences = append(m.Sentences, s)
		}
	}
	m.Tokens = strings.FieldsFunc(m.Lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	return m
}

// Matcher returns the values it finds in a message, or nil.
type Matcher func(m *Message) []string

// Rule binds a matcher to the briefing field it fills.
type Rule struct {
	Field domain.Field
	Match Matcher
}

// Term maps a canonical value to the keywords that select it.
type Term struct {
	Value    string
	Keywords []string
}

// DefaultRules is the extraction table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Field: domain.FieldProjectType, Match: SubstringTerms(projectTypeTerms)},
		{Field: domain.FieldIndustry, Match: TokenKeywords(industryKeywords)},
		{Field: domain.FieldTargetAudience, Match: SentenceWith(audienceTriggers)},
		{Field: domain.FieldStyle, Match: SubstringTerms(styleTerms)},
		{Field: domain.FieldColors, Match: Colors(colorTerms)},
		{Field: domain.FieldBudget, Match: FirstOf(Patterns(budgetPatterns), SentenceWith([]string{"budget"}))},
		{Field: domain.FieldTimeline, Match: FirstOf(Patterns(timelinePatterns), Patterns([]*regexp.Regexp{urgencyTrigger}), Gated(timeContext, Patterns([]*regexp.Regexp{hasteTrigger})))},
		{Field: domain.FieldCompetitors, Match: competitorMatcher},
		{Field: domain.FieldLikes, Match: likeMatcher},
		{Field: domain.FieldDislikes, Match: dislikeMatcher},
		{Field: domain.FieldUniqueSellingPoints, Match: AfterTrigger(uspTrigger, nil, ",:")},
		{Field: domain.FieldAdditionalInfo, Match: SentenceWith(additionalInfoTriggers)},
	}
}

var projectTypeTerms = []Term{
	{Value: string(domain.ProjectLogo), Keywords: []string{"logo", "zeichen", "symbol"}},
	{Value: string(domain.ProjectSocial), Keywords: []string{"social", "instagram", "linkedin", "post"}},
	{Value: string(domain.ProjectBranding), Keywords: []string{"branding", "corporate identity", "ci"}},
	{Value: string(domain.ProjectVideo), Keywords: []string{"video", "film", "werbespot"}},
}

var industryKeywords = []string{
	"yoga", "fitness", "gesundheit", "technologie", "tech", "it", "software",
	"beratung", "consulting", "finanzen", "bank", "versicherung", "immobilien",
	"gastronomie", "restaurant", "cafe", "café", "handel", "e-commerce", "shop",
	"bildung", "coaching", "schule", "universität", "bau", "handwerk",
	"produktion", "industrie",
}

var audienceTriggers = []string{"zielgruppe", "kunden", "kundin", "zielkunde", "nutzer"}

var styleTerms = []Term{
	{Value: "modern", Keywords: []string{"modern", "zeitgemäß", "aktuell"}},
	{Value: "klassisch", Keywords: []string{"klassisch", "traditionell", "elegant"}},
	{Value: "minimalistisch", Keywords: []string{"minimalistisch", "schlicht", "reduziert", "clean"}},
	{Value: "verspielt", Keywords: []string{"verspielt", "kreativ", "bunt", "fröhlich"}},
	{Value: "professionell", Keywords: []string{"professionell", "seriös", "business"}},
	{Value: "natürlich", Keywords: []string{"natürlich", "organisch", "nachhaltig", "grün"}},
}

var colorTerms = []Term{
	{Value: "blau", Keywords: []string{"blau", "blue", "türkis", "cyan"}},
	{Value: "grün", Keywords: []string{"grün", "green", "oliv", "lime"}},
	{Value: "rot", Keywords: []string{"rot", "red", "bordeaux", "kirsch"}},
	{Value: "orange", Keywords: []string{"orange", "peach", "apricot"}},
	{Value: "gelb", Keywords: []string{"gelb", "yellow", "gold"}},
	{Value: "lila", Keywords: []string{"lila", "violett", "purple", "lavendel"}},
	{Value: "rosa", Keywords: []string{"rosa", "pink", "magenta"}},
	{Value: "schwarz", Keywords: []string{"schwarz", "black"}},
	{Value: "weiß", Keywords: []string{"weiß", "weiss", "white"}},
	{Value: "grau", Keywords: []string{"grau", "grey", "gray", "silber"}},
}

// colorEndings are inflections accepted after a color keyword ("blaue", "grünen").
var colorEndings = []string{"", "e", "em", "en", "er", "es", "s", "tön", "töne", "tönen", "ton"}

// colorPrefixes are shade prefixes accepted before a color keyword ("dunkelblau").
var colorPrefixes = []string{"dunkel", "hell", "pastell", "knall", "tief", "zart", "neon", "light", "dark"}

var negations = []string{"kein", "keine", "keinen", "keinem", "keiner", "nicht", "ohne", "no", "not", "without"}

var timelinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|[^\p{L}])((?:\d+\s*|(?:ein|eine|einen|zwei|drei|vier|fünf|sechs|acht|zehn|zwölf)\s+)(?:(?:-|bis)\s*\d+\s*)?(?:wochen|woche|monaten|monate|monat|tagen|tage|tag|weeks|week|months|month|days|day))`),
	regexp.MustCompile(`(?i)(?:bis|until|by)\s+(?:ende|anfang|mitte|end of)?\s*(?:januar|februar|märz|april|mai|juni|juli|august|september|oktober|november|dezember|\d{4})`),
}

// timeContext gates "schnell", which on its own is usually an adjective.
var timeContext = []string{"zeit", "termin", "deadline", "frist", "woche", "monat", "tag", "fertig"}

var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:chf|€|eur|euro|fr\.)\s*\d[\d'.,]*(?:\s*(?:k|tsd\.?|tausend))?`),
	regexp.MustCompile(`(?i)\d[\d'.,]*\s*(?:k|tsd\.?|tausend)?\s*(?:€|euro|eur|chf|franken)`),
}

var additionalInfoTriggers = []string{"wichtig ist", "außerdem", "zusätzlich", "übrigens"}

var (
	competitorTrigger = triggerPattern(`wettbewerber\p{L}*`, `konkurren\p{L}*`, `mitbewerber\p{L}*`, `vergleichbar mit`, `ähnlich wie`)
	dislikeTrigger    = triggerPattern(`gefällt mir nicht`, `gefallen mir nicht`, `gefällt nicht`, `mag ich nicht`, `mag keine`, `nicht gut`, `ich hasse`, `finde ich schlecht`)
	likeTrigger       = triggerPattern(`gefällt mir`, `gefallen mir`, `gefällt`, `mag ich`, `ich mag`, `finde gut`, `gut finde`, `ich liebe`)
	urgencyTrigger    = triggerPattern(`dringend`, `eilig`, `sofort`, `asap`, `urgent`, `so schnell wie möglich`)
	hasteTrigger      = triggerPattern(`schnell`, `zügig`)
	uspTrigger        = triggerPattern(`alleinstellungsmerkmal\p{L}*`, `usp`, `einzigartig\p{L}*`, `besonders an uns`, `unterscheidet uns`)
)

var (
	competitorFiller = regexp.MustCompile(`(?i)^(?:sind|ist|wären|wie|z\.\s*b\.|zum beispiel|etwa|u\.a\.)\s+`)
	listSeparator    = regexp.MustCompile(`(?i)\s*(?:,|/|&|\bund\b|\boder\b)\s*`)
	negatedCapture   = regexp.MustCompile(`(?i)^(?:nicht|kein)`)
)

var (
	competitorMatcher = splitList(captureAfter(competitorTrigger, nil, "", false))
	dislikeMatcher    = AfterTrigger(dislikeTrigger, nil, ",:")
	likeMatcher       = AfterTrigger(likeTrigger, dislikeTrigger, ",:")
)

// triggerPattern builds a case-insensitive alternation bounded by non-letters.
// Group 1 spans the trigger itself.
func triggerPattern(alts ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + strings.Join(alts, "|") + `)(?:[^\p{L}\p{N}]|$)`)
}

// SubstringTerms returns the value of the first term with a keyword contained in the message.
func SubstringTerms(terms []Term) Matcher {
	return func(m *Message) []string {
		for _, t := range terms {
			for _, kw := range t.Keywords {
				if strings.Contains(m.Lower, kw) {
					return []string{t.Value}
				}
			}
		}
		return nil
	}
}

// TokenKeywords returns the first keyword, in list order, equal to a whole token.
func TokenKeywords(keywords []string) Matcher {
	return func(m *Message) []string {
		for _, kw := range keywords {
			if slices.Contains(m.Tokens, kw) {
				return []string{kw}
			}
		}
		return nil
	}
}

// SentenceWith returns the first sentence containing any trigger.
func SentenceWith(triggers []string) Matcher {
	return func(m *Message) []string {
		for _, s := range m.Sentences {
			ls := strings.ToLower(s)
			for _, t := range triggers {
				if strings.Contains(ls, t) {
					return []string{s}
				}
			}
		}
		return nil
	}
}

// Patterns returns the literal text of the first pattern that matches, or
// its first capture group when the pattern has one.
func Patterns(res []*regexp.Regexp) Matcher {
	return func(m *Message) []string {
		for _, re := range res {
			sub := re.FindStringSubmatch(m.Raw)
			if sub == nil {
				continue
			}
			hit := sub[0]
			if len(sub) > 1 && sub[1] != "" {
				hit = sub[1]
			}
			if hit = strings.TrimRight(strings.TrimSpace(hit), ".,"); hit != "" {
				return []string{hit}
			}
		}
		return nil
	}
}

// Gated runs inner only when the message contains one of words.
func Gated(words []string, inner Matcher) Matcher {
	return func(m *Message) []string {
		for _, w := range words {
			if strings.Contains(m.Lower, w) {
				return inner(m)
			}
		}
		return nil
	}
}

// FirstOf returns the result of the first matcher that finds something.
func FirstOf(ms ...Matcher) Matcher {
	return func(m *Message) []string {
		for _, match := range ms {
			if v := match(m); len(v) > 0 {
				return v
			}
		}
		return nil
	}
}

// AfterTrigger picks the first sentence matching trigger (and not exclude) and
// returns the text following the trigger up to the first byte in stop. When
// nothing follows, the whole sentence is returned.
func AfterTrigger(trigger, exclude *regexp.Regexp, stop string) Matcher {
	return captureAfter(trigger, exclude, stop, true)
}

func captureAfter(trigger, exclude *regexp.Regexp, stop string, sentenceFallback bool) Matcher {
	return func(m *Message) []string {
		for _, s := range m.Sentences {
			if exclude != nil && exclude.MatchString(s) {
				continue
			}
			loc := trigger.FindStringSubmatchIndex(s)
			if loc == nil {
				continue
			}
			rest := strings.TrimLeft(s[loc[3]:], ": \t")
			if i := strings.IndexAny(rest, stop); stop != "" && i >= 0 {
				rest = rest[:i]
			}
			rest = strings.TrimSpace(rest)
			if rest == "" {
				if !sentenceFallback {
					continue
				}
				return []string{s}
			}
			if negatedCapture.MatchString(rest) {
				continue
			}
			return []string{rest}
		}
		return nil
	}
}

// splitList breaks a competitor capture into names.
func splitList(inner Matcher) Matcher {
	return func(m *Message) []string {
		var out []string
		for _, v := range inner(m) {
			v = competitorFiller.ReplaceAllString(v, "")
			for _, name := range listSeparator.Split(v, -1) {
				if name = strings.TrimSpace(name); name != "" {
					out = append(out, name)
				}
			}
		}
		return out
	}
}

// Colors returns canonical colors whose keywords occur as tokens, in table
// order. A color directly preceded by a negation ("kein Rot") is skipped.
func Colors(terms []Term) Matcher {
	return func(m *Message) []string {
		var out []string
		for _, t := range terms {
			if colorMentioned(m.Tokens, t.Keywords) {
				out = append(out, t.Value)
			}
		}
		return out
	}
}

func colorMentioned(tokens, keywords []string) bool {
	for i, tok := range tokens {
		if i > 0 && slices.Contains(negations, tokens[i-1]) {
			continue
		}
		for _, kw := range keywords {
			if colorToken(tok, kw) {
				return true
			}
		}
	}
	return false
}

func colorToken(tok, kw string) bool {
	for _, p := range colorPrefixes {
		if rest, ok := strings.CutPrefix(tok, p); ok && rest != "" {
			tok = strings.TrimPrefix(rest, "-")
			break
		}
	}
	rest, ok := strings.CutPrefix(tok, kw)
	if !ok {
		return false
	}
	return slices.Contains(colorEndings, rest)
}
