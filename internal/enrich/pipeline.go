// Package enrich derives display hints from a case record's free text:
// priority, category, elapsed days, a short summary and a deadline. Every
// derivation is a pure function of the record and the injected clock and
// tolerates empty or malformed input.
package enrich

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

// EmptySummary is shown when a record carries no text at all.
const EmptySummary = "Sem descrição disponível"

const (
	summarySentenceMin = 80
	deadlineLookback   = 7
	cuedLookback       = 30
	deadlineLookahead  = 30
	urgentWithinDays   = 3
	dateLayout         = "02/01/2006"
)

var (
	fullDatePattern = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`)
	dayMonthPattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}))?\b`)
	// Dates introduced by one of these get the longer lookback.
	deadlineCue = regexp.MustCompile(`(?i)(?:^|[^\pL])(vencimento|vence|prazo|at[ée]|due|deadline)\D{0,20}$`)

	boilerplate = regexp.MustCompile(`(?i)^\s*(trata-se de|refere-se a|processo referente (a|ao|à)|referente (a|ao|à)|assunto:|objeto:|em atenção (a|ao|à))\s*`)
	sentenceEnd = regexp.MustCompile(`[.!?](\s|$)`)
)

// Deadline is the first date in the text that reads as a due date.
type Deadline struct {
	Date      string `json:"data"`
	IsUrgent  bool   `json:"urgente"`
	IsOverdue bool   `json:"vencido"`
}

// Record is a raw record plus derived fields.
type Record struct {
	portal.Process
	Priority     Priority  `json:"prioridade"`
	Category     Category  `json:"categoria"`
	DaysElapsed  *int      `json:"dias_decorridos"`
	SmartSummary string    `json:"resumo"`
	Deadline     *Deadline `json:"prazo"`
}

// Pipeline applies the rule sets. The zero value uses the default rules and
// the wall clock.
type Pipeline struct {
	Now           func() time.Time
	PriorityRules []Rule[Priority]
	CategoryRules []Rule[Category]
}

// New returns a pipeline with the default rules and the given clock.
func New(now func() time.Time) *Pipeline {
	return &Pipeline{
		Now:           now,
		PriorityRules: DefaultPriorityRules(),
		CategoryRules: DefaultCategoryRules(),
	}
}

func (p *Pipeline) now() time.Time {
	if p == nil || p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Enrich derives the display fields for one record.
func (p *Pipeline) Enrich(proc portal.Process) Record {
	now := p.now()
	text := freeText(proc)

	return Record{
		Process:      proc,
		Priority:     p.Priority(text),
		Category:     p.Category(text),
		DaysElapsed:  DaysElapsed(proc.Date, now),
		SmartSummary: SmartSummary(firstNonEmpty(proc.Description, proc.Type)),
		Deadline:     FindDeadline(strings.Join([]string{proc.Description, proc.Type}, " "), now),
	}
}

// EnrichAll enriches a listing in order. A nil listing yields an empty slice.
func (p *Pipeline) EnrichAll(processes []portal.Process) []Record {
	out := make([]Record, 0, len(processes))
	for _, proc := range processes {
		out = append(out, p.Enrich(proc))
	}
	return out
}

// Priority classifies text with the first matching priority rule.
func (p *Pipeline) Priority(text string) Priority {
	rules := DefaultPriorityRules()
	if p != nil && p.PriorityRules != nil {
		rules = p.PriorityRules
	}
	result, _ := firstMatch(rules, text, PriorityLow)
	return result
}

// Category buckets text with the first matching category rule.
func (p *Pipeline) Category(text string) Category {
	rules := DefaultCategoryRules()
	if p != nil && p.CategoryRules != nil {
		rules = p.CategoryRules
	}
	result, _ := firstMatch(rules, text, CategoryGeneral)
	return result
}

// DaysElapsed is the ceiling of the days between a DD/MM/YYYY date and now,
// or nil when no such date is present.
func DaysElapsed(date string, now time.Time) *int {
	m := fullDatePattern.FindString(date)
	if m == "" {
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, m, now.Location())
	if err != nil {
		return nil
	}
	days := int(math.Ceil(now.Sub(t).Hours() / 24))
	return &days
}

// SmartSummary strips boilerplate openings and shortens long text to its
// first sentence.
func SmartSummary(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	for {
		stripped := boilerplate.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = stripped
	}
	if text == "" {
		return EmptySummary
	}
	if utf8.RuneCountInString(text) < summarySentenceMin {
		return text
	}
	if loc := sentenceEnd.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[:loc[0]+1])
	}
	return text
}

// FindDeadline returns the first DD/MM[/YYYY] token that falls inside the
// deadline window, or nil. The window is [-7, +30] days around today; a date
// introduced by a deadline word may lie up to 30 days in the past. A missing
// year resolves to whichever of last, this or next year lands in the window.
func FindDeadline(text string, now time.Time) *Deadline {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, loc := range dayMonthPattern.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[loc[2]:loc[3]])
		month, _ := strconv.Atoi(text[loc[4]:loc[5]])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}

		lookback := deadlineLookback
		if deadlineCue.MatchString(text[:loc[0]]) {
			lookback = cuedLookback
		}

		years := []int{now.Year(), now.Year() + 1, now.Year() - 1}
		if loc[6] >= 0 {
			year, _ := strconv.Atoi(text[loc[6]:loc[7]])
			years = []int{year}
		}

		for _, year := range years {
			date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
			if date.Day() != day {
				// 31/04, or 29/02 outside a leap year.
				continue
			}
			until := int(math.Round(date.Sub(today).Hours() / 24))
			if until < -lookback || until > deadlineLookahead {
				continue
			}
			return &Deadline{
				Date:      date.Format(dateLayout),
				IsUrgent:  until >= 0 && until < urgentWithinDays,
				IsOverdue: until < 0,
			}
		}
	}
	return nil
}

func freeText(proc portal.Process) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{proc.Type, proc.Description, proc.InterestedParties} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
