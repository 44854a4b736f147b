package classifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/openhelm/supportdesk/internal/models"
)

type Outcome string

const (
	OutcomeNeedsTicket        Outcome = "needs_ticket"
	OutcomeResolved           Outcome = "resolved"
	OutcomeInformational      Outcome = "informational"
	OutcomeEscalationRequired Outcome = "escalation_required"
)

// TicketMetadata is derived ticket material for needs_ticket and
// escalation_required outcomes.
type TicketMetadata struct {
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        models.TicketCategory `json:"category"`
	Priority        models.TicketPriority `json:"priority"`
	Tags            []string              `json:"tags"`
	UrgencyScore    float64               `json:"urgency_score"`
	ComplexityScore float64               `json:"complexity_score"`
	SentimentScore  float64               `json:"sentiment_score"`
}

// Result is transient; it is never persisted as-is.
type Result struct {
	ConversationID    uint                `json:"conversation_id"`
	Outcome           Outcome             `json:"outcome"`
	Confidence        float64             `json:"confidence"`
	Metadata          *TicketMetadata     `json:"metadata,omitempty"`
	Reasoning         string              `json:"reasoning"`
	ExtractedEntities map[string][]string `json:"extracted_entities"`
}

var (
	errorCodeRe = regexp.MustCompile(`error[-_]?\d+`)
	urlRe       = regexp.MustCompile(`https?://[^\s]+`)
	emailRe     = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe     = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)
)

// Classifier is a pure rule engine over fixed keyword tables: no I/O, no
// model calls, deterministic for a given conversation.
type Classifier struct{}

func New() *Classifier { return &Classifier{} }

// Classify inspects the conversation text and decides whether it needs a
// ticket, was resolved in-chat, is informational, or requires escalation.
// A nil conversation or an empty user message short-circuits to
// informational with zero confidence and no metadata.
func (c *Classifier) Classify(conv *models.Conversation) Result {
	if conv == nil {
		return Result{
			Outcome:           OutcomeInformational,
			Confidence:        0,
			Reasoning:         "conversation not found",
			ExtractedEntities: map[string][]string{},
		}
	}

	userMsg := strings.TrimSpace(conv.UserMessage)
	if userMsg == "" {
		return Result{
			ConversationID:    conv.ID,
			Outcome:           OutcomeInformational,
			Confidence:        0,
			Reasoning:         "empty user message",
			ExtractedEntities: map[string][]string{},
		}
	}

	userLower := strings.ToLower(userMsg)
	botLower := strings.ToLower(conv.BotResponse)
	text := userLower + " " + botLower

	entities := extractEntities(text)

	escCount := countMatches(text, escalationKeywords)
	problemCount := countMatches(text, problemKeywords)
	resolutionAny := countMatches(text, resolutionKeywords)
	resolutionInBot := countMatches(botLower, resolutionKeywords)
	infoCount := countMatches(text, informationalKeywords)

	var (
		outcome  Outcome
		reasons  []string
		keywords int
	)
	switch {
	case escCount > 0:
		outcome = OutcomeEscalationRequired
		keywords = escCount
		reasons = append(reasons, "escalation keywords detected")
	case problemCount > 0 && resolutionInBot == 0:
		outcome = OutcomeNeedsTicket
		keywords = problemCount
		reasons = append(reasons, "problem reported without resolution in response")
	case problemCount > 0 && resolutionAny > 0:
		outcome = OutcomeResolved
		keywords = resolutionAny
		reasons = append(reasons, "problem appears resolved in conversation")
	case infoCount > 0:
		outcome = OutcomeInformational
		keywords = infoCount
		reasons = append(reasons, "informational question detected")
	case len(userMsg) > 100 && problemCount > 0:
		outcome = OutcomeNeedsTicket
		keywords = problemCount
		reasons = append(reasons, "long message with problem indicators")
	default:
		outcome = OutcomeInformational
		reasons = append(reasons, "no actionable keywords found")
	}

	confidence := scoreConfidence(outcome, keywords, len(userMsg))
	reasons = append(reasons, fmt.Sprintf("%d keyword match(es)", keywords))

	res := Result{
		ConversationID:    conv.ID,
		Outcome:           outcome,
		Confidence:        confidence,
		Reasoning:         strings.Join(reasons, "; "),
		ExtractedEntities: entities,
	}

	if outcome == OutcomeNeedsTicket || outcome == OutcomeEscalationRequired {
		res.Metadata = buildMetadata(conv, userMsg, userLower, text, entities)
	}
	return res
}

func scoreConfidence(outcome Outcome, keywords, msgLen int) float64 {
	conf := 0.5
	switch outcome {
	case OutcomeEscalationRequired:
		conf += minf(0.15*float64(keywords), 0.4)
	default:
		conf += minf(0.1*float64(keywords), 0.3)
	}
	if msgLen > 200 {
		conf += 0.1
	} else if msgLen < 50 {
		conf -= 0.1
	}
	return clamp(conf, 0, 1)
}

func buildMetadata(conv *models.Conversation, userMsg, userLower, text string, entities map[string][]string) *TicketMetadata {
	md := &TicketMetadata{
		Title:    truncateTitle(userMsg, 100),
		Category: inferCategory(text),
		Priority: inferPriority(text),
	}

	md.Description = fmt.Sprintf("Auto-generated from chat session %s.\n\nCustomer: %s", conv.SessionID, userMsg)
	if conv.BotResponse != "" {
		md.Description += "\n\nAssistant: " + conv.BotResponse
	}

	tags := map[string]struct{}{"ai-generated": {}}
	for _, cat := range []models.TicketCategory{models.CategoryBilling, models.CategoryTechnical, models.CategoryAccount} {
		if countMatches(text, categoryKeywords[cat]) > 0 {
			tags[string(cat)] = struct{}{}
		}
	}
	for _, p := range entities["products"] {
		tags[p] = struct{}{}
	}
	urgCount := countMatches(text, urgencyKeywords)
	if urgCount > 0 {
		tags["urgent"] = struct{}{}
	}
	md.Tags = make([]string, 0, len(tags))
	for t := range tags {
		md.Tags = append(md.Tags, t)
	}
	sort.Strings(md.Tags)

	negCount := countMatches(text, negativeWords)
	posCount := countMatches(text, positiveWords)
	mentions := len(entities["products"]) + len(entities["features"])

	md.UrgencyScore = clamp(0.3+0.2*float64(mini(urgCount, 3))+0.1*float64(mini(negCount, 3)), 0, 1)
	md.ComplexityScore = clamp(
		minf(float64(len(userMsg))/500, 0.4)+
			0.15*float64(mini(countMatches(text, complexityKeywords), 2))+
			0.1*float64(mini(mentions, 3)),
		0, 1)

	lexicon := maxi(len(positiveWords), len(negativeWords))
	md.SentimentScore = clamp(float64(posCount-negCount)/float64(lexicon), -1, 1)

	return md
}

func inferCategory(text string) models.TicketCategory {
	best := models.CategoryGeneral
	bestScore := 0
	for _, cat := range categoryOrder {
		score := countMatches(text, categoryKeywords[cat])
		if score > bestScore {
			best = cat
			bestScore = score
		}
	}
	return best
}

// Priority precedence is critical > high > low; medium is the total-function
// default so every result carries exactly one priority.
func inferPriority(text string) models.TicketPriority {
	switch {
	case containsAny(text, criticalKeywords):
		return models.PriorityCritical
	case containsAny(text, highKeywords):
		return models.PriorityHigh
	case containsAny(text, lowKeywords):
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

func extractEntities(text string) map[string][]string {
	entities := map[string][]string{}
	if v := dedupe(errorCodeRe.FindAllString(text, -1)); len(v) > 0 {
		entities["error_codes"] = v
	}
	if v := dedupe(urlRe.FindAllString(text, -1)); len(v) > 0 {
		entities["urls"] = v
	}
	if v := dedupe(emailRe.FindAllString(text, -1)); len(v) > 0 {
		entities["emails"] = v
	}
	if v := dedupe(phoneRe.FindAllString(text, -1)); len(v) > 0 {
		entities["phones"] = v
	}
	var products, features []string
	for _, p := range knownProducts {
		if strings.Contains(text, p) {
			products = append(products, p)
		}
	}
	for _, f := range knownFeatures {
		if strings.Contains(text, f) {
			features = append(features, f)
		}
	}
	if len(products) > 0 {
		entities["products"] = products
	}
	if len(features) > 0 {
		entities["features"] = features
	}
	return entities
}

func truncateTitle(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func containsAny(text string, keywords []string) bool {
	return countMatches(text, keywords) > 0
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}
