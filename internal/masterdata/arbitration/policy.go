// Package arbitration decides whether an incoming value may overwrite the
// stored one, based on who wrote the stored value and who is writing now.
//
// The hierarchy is data: a trust tier per source plus an ordered rule table.
// Decide walks the table top to bottom and the first matching rule wins.
// Pairs no rule covers are denied.
package arbitration

import (
	"fmt"

	"masterdata/internal/masterdata/models"
)

// Outcome is the result of arbitration.
type Outcome string

const (
	NoChange Outcome = "NO_CHANGE"
	Allow    Outcome = "ALLOW"
	Deny     Outcome = "DENY"
)

// Decision is an outcome with the rule that produced it.
type Decision struct {
	Outcome Outcome
	Reason  string
	Rule    int
}

// Accepted reports whether the write should be applied.
func (d Decision) Accepted() bool { return d.Outcome == Allow }

// sourceTier ranks sources. USER_INPUT is above everything but is handled by
// explicit rules; the tiers only settle automated-vs-automated pairs.
var sourceTier = map[models.Source]int{
	models.SourceUserInput:          3,
	models.SourceGLEIF:              2,
	models.SourceNationalRegistry:   1,
	models.SourceDocumentExtraction: 0,
	models.SourceSystem:             0,
}

// Tier returns the trust tier of s, or false for unknown sources.
func Tier(s models.Source) (int, bool) {
	t, ok := sourceTier[s]
	return t, ok
}

type match func(existing *models.Source, incoming models.Source, valuesEqual bool) bool

type rule struct {
	no      int
	when    match
	outcome Outcome
	reason  string
}

func is(s models.Source) func(models.Source) bool {
	return func(other models.Source) bool { return other == s }
}

func automated(s models.Source) bool { return s.IsAutomated() }

func existingIs(pred func(models.Source) bool) func(*models.Source) bool {
	return func(existing *models.Source) bool { return existing != nil && pred(*existing) }
}

func pair(existing func(models.Source) bool, incoming func(models.Source) bool) match {
	ex := existingIs(existing)
	return func(e *models.Source, in models.Source, _ bool) bool {
		return ex(e) && incoming(in)
	}
}

// rules is the arbitration table in priority order.
var rules = []rule{
	{
		no:      0,
		when:    func(_ *models.Source, in models.Source, _ bool) bool { return !in.IsKnown() },
		outcome: Deny,
		reason:  "unknown incoming source",
	},
	{
		no:      1,
		when:    func(_ *models.Source, _ models.Source, equal bool) bool { return equal },
		outcome: NoChange,
		reason:  "value unchanged",
	},
	{
		no:      2,
		when:    func(e *models.Source, _ models.Source, _ bool) bool { return e == nil },
		outcome: Allow,
		reason:  "first write",
	},
	{
		no:      3,
		when:    pair(is(models.SourceUserInput), automated),
		outcome: Deny,
		reason:  "human override protected",
	},
	{
		no:      4,
		when:    pair(is(models.SourceNationalRegistry), is(models.SourceGLEIF)),
		outcome: Allow,
		reason:  "higher-trust registry supersedes lower-trust registry",
	},
	{
		no:      5,
		when:    func(_ *models.Source, in models.Source, _ bool) bool { return in == models.SourceUserInput },
		outcome: Allow,
		reason:  "human always wins",
	},
	{
		no:      6,
		when:    func(e *models.Source, in models.Source, _ bool) bool { return e != nil && *e == in },
		outcome: Allow,
		reason:  "refresh from same source",
	},
	{
		no:      7,
		when:    pair(is(models.SourceGLEIF), is(models.SourceNationalRegistry)),
		outcome: Deny,
		reason:  "lower-trust registry cannot replace higher-trust registry",
	},
	{
		no:      8,
		when:    tierUpgrade,
		outcome: Allow,
		reason:  "higher-trust source supersedes lower-trust source",
	},
}

// defaultRule applies when nothing in the table matches.
var defaultRule = rule{no: 9, outcome: Deny, reason: "unspecified source pair"}

func tierUpgrade(e *models.Source, in models.Source, _ bool) bool {
	if e == nil {
		return false
	}
	existingTier, ok := sourceTier[*e]
	if !ok {
		return false
	}
	incomingTier, ok := sourceTier[in]
	return ok && incomingTier > existingTier
}

// Decide arbitrates a write of incoming over the current attribution
// existing (nil when the field has never been written).
func Decide(existing *models.Provenance, incoming models.Source, valuesEqual bool) Decision {
	var existingSource *models.Source
	if existing != nil {
		s := existing.Source
		existingSource = &s
	}
	return decide(existingSource, incoming, valuesEqual)
}

func decide(existing *models.Source, incoming models.Source, valuesEqual bool) Decision {
	for _, r := range rules {
		if r.when(existing, incoming, valuesEqual) {
			return Decision{Outcome: r.outcome, Reason: r.reason, Rule: r.no}
		}
	}
	return Decision{Outcome: defaultRule.outcome, Reason: defaultRule.reason, Rule: defaultRule.no}
}

// Pair is one (existing, incoming) source combination. A nil Existing means
// the field has no provenance yet.
type Pair struct {
	Existing *models.Source
	Incoming models.Source
}

func (p Pair) String() string {
	existing := "<none>"
	if p.Existing != nil {
		existing = string(*p.Existing)
	}
	return fmt.Sprintf("%s->%s", existing, p.Incoming)
}

// Pairs enumerates every combination of known sources, including the
// no-provenance case.
func Pairs() []Pair {
	sources := models.Sources()
	out := make([]Pair, 0, (len(sources)+1)*len(sources))
	for _, in := range sources {
		out = append(out, Pair{Incoming: in})
	}
	for _, ex := range sources {
		ex := ex
		for _, in := range sources {
			out = append(out, Pair{Existing: &ex, Incoming: in})
		}
	}
	return out
}

// Matrix decides every pair for differing values, keyed by Pair.String().
func Matrix() map[string]Outcome {
	out := make(map[string]Outcome)
	for _, p := range Pairs() {
		out[p.String()] = decide(p.Existing, p.Incoming, false).Outcome
	}
	return out
}
