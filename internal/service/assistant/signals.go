package assistant

import (
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/yami-59/network-ops-demo/internal/model"
)

var opIDPattern = regexp.MustCompile(`(?i)\bOP-\d{4}-\d{4,}\b`)

// timeOfDayPattern matches date-parser hits that name a clock time but no day.
var timeOfDayPattern = regexp.MustCompile(`(?i)^(?:at\s+|à\s+|vers\s+)?(?:\d{1,2}(?:[:h.]\d{2})?\s*(?:a\.?m\.?|p\.?m\.?|h)?|noon|midnight)$`)

// Window is an inclusive range of calendar days in model.DateLayout.
type Window struct {
	From string
	To   string
	// Label is the phrase the window was read from.
	Label string
}

// Contains reports whether the YYYY-MM-DD date d falls inside w.
func (w Window) Contains(d string) bool {
	return d >= w.From && d <= w.To
}

// Signals is what a question says about which records it is about.
type Signals struct {
	OpIDs    []string
	Statuses []model.Status
	Window   *Window
}

// Empty reports whether no usable signal was found.
func (s Signals) Empty() bool {
	return len(s.OpIDs) == 0 && len(s.Statuses) == 0 && s.Window == nil
}

func (s *Signals) addOpID(id string) {
	id = strings.ToUpper(id)
	if !slices.Contains(s.OpIDs, id) {
		s.OpIDs = append(s.OpIDs, id)
	}
}

func (s *Signals) addStatus(st model.Status) {
	if !slices.Contains(s.Statuses, st) {
		s.Statuses = append(s.Statuses, st)
	}
}

type keyword struct {
	word   string
	prefix bool
}

// statusKeywords are matched against the lower-cased words of a question,
// either exactly or as a word prefix.
var statusKeywords = []struct {
	status model.Status
	words  []keyword
}{
	{model.StatusFailed, []keyword{
		{"échec", true}, {"echec", true}, {"fail", true}, {"erreur", true}, {"error", true},
	}},
	{model.StatusExecuted, []keyword{
		{"exécut", true}, {"execut", true}, {"done", false}, {"termin", true}, {"fait", false}, {"completed", false},
	}},
	{model.StatusPlanned, []keyword{
		{"plan", true}, {"prévu", true}, {"prevu", true}, {"programm", true}, {"schedul", true},
	}},
	{model.StatusPending, []keyword{
		{"attente", false}, {"pending", false}, {"waiting", false},
	}},
}

// idioms are word pairs whose second word is not a status keyword there,
// such as "en fait" or "tout à fait".
var idioms = map[string][]string{
	"fait": {"en", "à"},
}

type windowPhrase struct {
	phrases []string
	span    func(now time.Time) (time.Time, time.Time)
	// planned marks phrases that ask about the schedule when no status is named.
	planned bool
}

var windowPhrases = []windowPhrase{
	{[]string{"semaine prochaine", "next week"}, func(now time.Time) (time.Time, time.Time) {
		start := weekStart(now).AddDate(0, 0, 7)
		return start, start.AddDate(0, 0, 6)
	}, true},
	{[]string{"cette semaine", "this week"}, func(now time.Time) (time.Time, time.Time) {
		start := weekStart(now)
		return start, start.AddDate(0, 0, 6)
	}, true},
	{[]string{"aujourd'hui", "aujourd’hui", "today"}, func(now time.Time) (time.Time, time.Time) {
		return now, now
	}, false},
	{[]string{"demain", "tomorrow"}, func(now time.Time) (time.Time, time.Time) {
		d := now.AddDate(0, 0, 1)
		return d, d
	}, false},
	{[]string{"ce mois", "this month"}, func(now time.Time) (time.Time, time.Time) {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, -1)
	}, false},
}

// weekStart returns the Monday of now's week.
func weekStart(now time.Time) time.Time {
	offset := (int(now.Weekday()) + 6) % 7
	d := now.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// SignalExtractor reads op ids, status keywords and time windows out of a
// question.
type SignalExtractor struct {
	dates *when.Parser
}

// NewSignalExtractor builds an extractor whose free-form date fallback
// understands English and numeric dates.
func NewSignalExtractor() *SignalExtractor {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &SignalExtractor{dates: w}
}

// Extract returns the signals in question, with time windows resolved
// against now.
func (x *SignalExtractor) Extract(question string, now time.Time) Signals {
	var s Signals
	for _, id := range opIDPattern.FindAllString(question, -1) {
		s.addOpID(id)
	}

	// Op ids carry digits and dashes the word splitter would otherwise see.
	rest := opIDPattern.ReplaceAllString(question, " ")
	lower := strings.ToLower(rest)

	words := dropIdioms(strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }))
	for _, sk := range statusKeywords {
		if matchesAny(words, sk.words) {
			s.addStatus(sk.status)
		}
	}

	for _, wp := range windowPhrases {
		for _, p := range wp.phrases {
			if !strings.Contains(lower, p) {
				continue
			}
			from, to := wp.span(now)
			s.Window = &Window{From: from.Format(model.DateLayout), To: to.Format(model.DateLayout), Label: p}
			if wp.planned && len(s.Statuses) == 0 {
				s.addStatus(model.StatusPlanned)
			}
			break
		}
		if s.Window != nil {
			break
		}
	}

	if s.Window == nil && x.dates != nil {
		r, err := x.dates.Parse(rest, now)
		if err == nil && r != nil && !timeOfDayPattern.MatchString(strings.Trim(r.Text, " \t?!,;")) {
			day := r.Time.Format(model.DateLayout)
			s.Window = &Window{From: day, To: day, Label: r.Text}
		}
	}
	return s
}

func dropIdioms(words []string) []string {
	out := words[:0:0]
	for i, w := range words {
		if prev, ok := idioms[w]; ok && i > 0 && slices.Contains(prev, words[i-1]) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func matchesAny(words []string, keywords []keyword) bool {
	for _, w := range words {
		for _, k := range keywords {
			if w == k.word || (k.prefix && strings.HasPrefix(w, k.word)) {
				return true
			}
		}
	}
	return false
}
