package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhelm/supportdesk/internal/models"
)

func conv(userMsg, botResp string) *models.Conversation {
	return &models.Conversation{
		ID:          1,
		SessionID:   "sess-1",
		UserMessage: userMsg,
		BotResponse: botResp,
	}
}

func TestClassifyNilConversation(t *testing.T) {
	res := New().Classify(nil)

	assert.Equal(t, OutcomeInformational, res.Outcome)
	assert.Zero(t, res.Confidence)
	assert.Nil(t, res.Metadata)
	assert.Equal(t, "conversation not found", res.Reasoning)
}

func TestClassifyEmptyMessage(t *testing.T) {
	res := New().Classify(conv("   ", "hello"))

	assert.Equal(t, OutcomeInformational, res.Outcome)
	assert.Zero(t, res.Confidence)
	assert.Nil(t, res.Metadata)
}

func TestClassifyUrgentOutage(t *testing.T) {
	res := New().Classify(conv(
		"My internet has been down for 3 days and I've already tried restarting the router multiple times. "+
			"This is affecting my work and I need this fixed immediately. I'm a premium customer and this is unacceptable.",
		"I'm very sorry about the disruption. Let me open a ticket so an engineer can look into your connection.",
	))

	assert.Equal(t, OutcomeNeedsTicket, res.Outcome)
	assert.GreaterOrEqual(t, res.Confidence, 0.5)

	require.NotNil(t, res.Metadata)
	assert.Equal(t, models.PriorityCritical, res.Metadata.Priority)
	assert.Equal(t, models.CategoryTechnical, res.Metadata.Category)
	assert.Contains(t, res.Metadata.Tags, "ai-generated")
	assert.Contains(t, res.Metadata.Tags, "urgent")
	assert.NotEmpty(t, res.Metadata.Title)
}

func TestClassifySimpleQuestionLowConfidence(t *testing.T) {
	res := New().Classify(conv("What are your business hours?", "We're open 9 to 5, Monday through Friday."))

	assert.Equal(t, OutcomeInformational, res.Outcome)
	assert.Less(t, res.Confidence, 0.5)
	assert.Nil(t, res.Metadata)
}

func TestClassifyEscalationWinsOverProblem(t *testing.T) {
	res := New().Classify(conv(
		"The mobile app is broken again and I'm frustrated. I want to speak to a person.",
		"I understand, let me connect you with an agent.",
	))

	assert.Equal(t, OutcomeEscalationRequired, res.Outcome)
	require.NotNil(t, res.Metadata)
}

func TestClassifyResolvedInChat(t *testing.T) {
	res := New().Classify(conv(
		"My login was broken this morning, can you check?",
		"There was a brief incident on our side. It is working now, you should be all set.",
	))

	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Nil(t, res.Metadata)
}

func TestClassifyPriorityDefaultsToMedium(t *testing.T) {
	res := New().Classify(conv("I can't open the settings page on my account", "Let me check that."))

	assert.Equal(t, OutcomeNeedsTicket, res.Outcome)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, models.PriorityMedium, res.Metadata.Priority)
}

func TestClassifyExtractsEntities(t *testing.T) {
	res := New().Classify(conv(
		"The dashboard shows error_404 whenever I open https://app.example.com/reports, my email is bob@example.com",
		"",
	))

	assert.Contains(t, res.ExtractedEntities["error_codes"], "error_404")
	assert.Contains(t, res.ExtractedEntities["emails"], "bob@example.com")
	assert.Contains(t, res.ExtractedEntities["products"], "dashboard")
	assert.NotEmpty(t, res.ExtractedEntities["urls"])
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New()
	in := conv("The api integration keeps failing with error 500, this is urgent", "")

	first := c.Classify(in)
	for i := 0; i < 5; i++ {
		again := c.Classify(in)
		assert.Equal(t, first.Outcome, again.Outcome)
		assert.Equal(t, first.Confidence, again.Confidence)
		require.NotNil(t, again.Metadata)
		assert.Equal(t, first.Metadata.Tags, again.Metadata.Tags)
	}
}

func TestTruncateTitle(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "abcdefghij"
	}
	got := truncateTitle(long, 100)
	assert.Len(t, []rune(got), 103)
	assert.Equal(t, "...", got[len(got)-3:])

	assert.Equal(t, "short", truncateTitle("short", 100))
}
