package brain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

// PromptInput is everything the system prompt is rendered from. Journey is nil
// for general chat.
type PromptInput struct {
	Assessment *model.Assessment
	Results    *model.Results
	Journey    *model.JourneyData
}

// BuildSystemPrompt renders the context block followed by the behavioral
// instructions. It is pure and rebuilt on every request from current data.
func BuildSystemPrompt(in PromptInput) string {
	var sb strings.Builder

	if in.Journey != nil {
		sb.WriteString(journeyRolePrompt)
	} else {
		sb.WriteString(generalRolePrompt)
	}
	sb.WriteString("\n\n## Company\n")
	writeCompany(&sb, in.Assessment)

	sb.WriteString("\n## Assessment Results\n")
	writeResults(&sb, in.Results)

	if in.Journey != nil {
		sb.WriteString("\n## Transformation Journey\n")
		writeJourney(&sb, in.Journey)
	}

	sb.WriteString("\n")
	sb.WriteString(behaviorPrompt)
	if in.Journey != nil {
		sb.WriteString("\n")
		sb.WriteString(journeyBehaviorPrompt)
	}
	return sb.String()
}

func writeCompany(sb *strings.Builder, a *model.Assessment) {
	if a == nil {
		sb.WriteString("- (no assessment data)\n")
		return
	}
	name := a.CompanyName
	if name == "" {
		name = "(not provided)"
	}
	fmt.Fprintf(sb, "- Name: %s\n", name)
	fmt.Fprintf(sb, "- Industry: %s\n", orUnknown(a.Industry))
	fmt.Fprintf(sb, "- Size: %s employees\n", orUnknown(a.CompanySize))
	if a.Role != "" {
		fmt.Fprintf(sb, "- Respondent role: %s\n", a.Role)
	}
	fmt.Fprintf(sb, "- Change readiness: %d/5\n", a.ChangeReadiness)
}

var tierOrder = []struct {
	tier  model.RecommendationTier
	label string
}{
	{model.TierQuickWin, "Quick wins"},
	{model.TierStrategic, "Strategic initiatives"},
	{model.TierTransformational, "Transformational initiatives"},
}

func writeResults(sb *strings.Builder, r *model.Results) {
	if r == nil {
		sb.WriteString("- (no results yet)\n")
		return
	}
	fmt.Fprintf(sb, "- Overall maturity: %.1f/5\n", r.OverallScore)

	if len(r.MaturityScores) > 0 {
		names := make([]string, 0, len(r.MaturityScores))
		for name := range r.MaturityScores {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("- Maturity by area:\n")
		for _, name := range names {
			fmt.Fprintf(sb, "  - %s: %.1f/5\n", humanize(name), r.MaturityScores[name])
		}
	}

	counts := r.TierCounts()
	sb.WriteString("- Recommendations:\n")
	for _, t := range tierOrder {
		fmt.Fprintf(sb, "  - %s: %d\n", t.label, counts[t.tier])
	}
}

// JourneyStats aggregates the journey workspace for the prompt.
type JourneyStats struct {
	Projects          int
	ProjectsByStatus  map[string]int
	AverageProgress   int
	BacklogItems      int
	BacklogByStatus   map[string]int
	StoryPoints       int
	DoneStoryPoints   int
	Sprints           int
	ActiveSprints     int
	CompletedSprints  int
	Risks             int
	OpenRisks         int
	HighSeverityRisks int
	EstimatedSavings  float64
	RealizedSavings   float64
}

func ComputeJourneyStats(j *model.JourneyData) JourneyStats {
	s := JourneyStats{
		ProjectsByStatus: map[string]int{},
		BacklogByStatus:  map[string]int{},
	}
	if j == nil {
		return s
	}

	s.Projects = len(j.Projects)
	progressTotal := 0
	for _, p := range j.Projects {
		s.ProjectsByStatus[p.Status]++
		progressTotal += p.Progress
		s.EstimatedSavings += p.EstimatedSavings
		s.RealizedSavings += RealizedSavings(p)
	}
	if s.Projects > 0 {
		s.AverageProgress = progressTotal / s.Projects
	}

	s.BacklogItems = len(j.BacklogItems)
	for _, b := range j.BacklogItems {
		s.BacklogByStatus[b.Status]++
		if b.StoryPoints != nil {
			s.StoryPoints += *b.StoryPoints
			if b.Status == "done" {
				s.DoneStoryPoints += *b.StoryPoints
			}
		}
	}

	s.Sprints = len(j.Sprints)
	for _, sp := range j.Sprints {
		switch sp.Status {
		case "active":
			s.ActiveSprints++
		case "completed":
			s.CompletedSprints++
		}
	}

	s.Risks = len(j.Risks)
	for _, r := range j.Risks {
		if r.Status != "closed" && r.Status != "mitigated" {
			s.OpenRisks++
		}
		if r.Severity == "high" || r.Severity == "critical" {
			s.HighSeverityRisks++
		}
	}
	return s
}

func writeJourney(sb *strings.Builder, j *model.JourneyData) {
	s := ComputeJourneyStats(j)

	fmt.Fprintf(sb, "- Projects: %d (%s), average progress %d%%\n",
		s.Projects, formatCounts(s.ProjectsByStatus), s.AverageProgress)
	fmt.Fprintf(sb, "- Backlog items: %d (%s), %d of %d story points done\n",
		s.BacklogItems, formatCounts(s.BacklogByStatus), s.DoneStoryPoints, s.StoryPoints)
	fmt.Fprintf(sb, "- Sprints: %d (%d active, %d completed)\n", s.Sprints, s.ActiveSprints, s.CompletedSprints)
	fmt.Fprintf(sb, "- Risks: %d (%d open, %d high severity)\n", s.Risks, s.OpenRisks, s.HighSeverityRisks)
	fmt.Fprintf(sb, "- Estimated annual savings: $%s\n", formatMoney(s.EstimatedSavings))
	fmt.Fprintf(sb, "- Realized annual savings: $%s\n", formatMoney(s.RealizedSavings))

	if len(j.Projects) > 0 {
		sb.WriteString("- Project list:\n")
		for _, p := range j.Projects {
			fmt.Fprintf(sb, "  - [id %d] %s: %s, %s priority, %d%% complete\n",
				p.ID, p.Title, p.Status, p.Priority, p.Progress)
		}
	}
}

var legacySavingsPattern = regexp.MustCompile(`(?i)actual\s+annual\s+savings:\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)(?:\s*([km])\b)?`)

// LegacySavingsFromDescription reads an "Actual Annual Savings: $X" line from
// a project description. Projects written before ActualSavings existed carry
// the figure only in text.
func LegacySavingsFromDescription(desc string) (float64, bool) {
	m := legacySavingsPattern.FindStringSubmatch(desc)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v, true
}

// RealizedSavings prefers the structured field and falls back to the legacy text.
func RealizedSavings(p model.Project) float64 {
	if p.ActualSavings != nil {
		return *p.ActualSavings
	}
	v, _ := LegacySavingsFromDescription(p.Description)
	return v
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d %s", counts[k], humanize(k))
	}
	return strings.Join(parts, ", ")
}

func formatMoney(v float64) string {
	s := strconv.FormatInt(int64(v+0.5), 10)
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

const generalRolePrompt = `You are a digital transformation advisor. You help a company understand its assessment results and decide what to do next.`

const journeyRolePrompt = `You are a digital transformation advisor and delivery coach. You help a company run its transformation journey: projects, backlog items, sprints and risks.`

const behaviorPrompt = `## How to respond

- Be direct and practical. Lead with the answer, then the reasoning.
- Ground every recommendation in the data above. Say so when the data does not cover a question.
- Use short markdown sections and bullet lists. Bold the key action in each recommendation.
- Keep answers under 400 words unless the user asks for detail.
- Stay within your role: digital transformation, technology adoption, process improvement and change management. Politely decline unrelated requests.
- Never invent numbers that are not in the context.`

const journeyBehaviorPrompt = `## Suggesting changes

When you recommend a concrete change to a project, backlog item, sprint or risk, state it explicitly with the item's name, the field and the new value, for example: "Mark **ERP Migration** as in_progress". The user reviews such suggestions before anything changes.`
