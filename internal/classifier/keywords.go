package classifier

import "github.com/openhelm/supportdesk/internal/models"

// Fixed keyword tables. Matching is substring-based on the lower-cased
// conversation text; the outcome rules and test scenarios depend on exact
// list membership, so changes here are behavior changes.

var escalationKeywords = []string{
	"contact support",
	"human agent",
	"speak to a person",
	"talk to a human",
	"real person",
	"still having issues",
	"escalate",
}

var problemKeywords = []string{
	"error",
	"broken",
	"down",
	"failed",
	"failing",
	"crash",
	"bug",
	"issue",
	"problem",
	"not working",
	"can't",
	"cannot",
	"unable",
	"help",
}

var resolutionKeywords = []string{
	"resolved",
	"fixed",
	"working now",
	"that worked",
	"solved",
	"all set",
	"no longer an issue",
}

var informationalKeywords = []string{
	"what is",
	"how do",
	"how to",
	"explain",
	"tell me about",
	"difference between",
}

var categoryKeywords = map[models.TicketCategory][]string{
	models.CategoryTechnical: {
		"error", "bug", "crash", "broken", "internet", "connection",
		"down", "server", "api", "timeout", "not working", "slow",
	},
	models.CategoryBilling: {
		"billing", "invoice", "charge", "charged", "payment", "refund",
		"subscription", "price", "credit card",
	},
	models.CategoryAccount: {
		"account", "password", "login", "sign in", "profile",
		"username", "two-factor", "locked out",
	},
	models.CategoryFeatureRequest: {
		"feature", "request", "add support", "would be great",
		"wish", "suggestion", "improvement",
	},
	models.CategoryBugReport: {
		"glitch", "defect", "reproduce", "steps to reproduce",
		"unexpected behavior", "regression",
	},
}

// Category scoring order is fixed so zero-information ties are deterministic.
var categoryOrder = []models.TicketCategory{
	models.CategoryTechnical,
	models.CategoryBilling,
	models.CategoryAccount,
	models.CategoryFeatureRequest,
	models.CategoryBugReport,
}

var criticalKeywords = []string{
	"critical", "urgent", "emergency", "immediately",
	"production down", "outage", "data loss",
}

var highKeywords = []string{
	"asap", "important", "high priority", "blocking", "severe", "major",
}

var lowKeywords = []string{
	"minor", "whenever", "low priority", "no rush", "trivial", "cosmetic",
}

var urgencyKeywords = []string{
	"urgent", "critical", "immediately", "asap", "emergency", "right now",
}

var complexityKeywords = []string{
	"integration", "api", "configuration", "database",
	"migration", "multiple", "intermittent",
}

var positiveWords = []string{
	"great", "thanks", "thank you", "awesome", "perfect",
	"good", "excellent", "appreciate", "love", "works",
}

var negativeWords = []string{
	"angry", "frustrated", "terrible", "awful", "horrible",
	"hate", "worst", "annoyed", "disappointed", "useless",
}

var knownProducts = []string{
	"dashboard", "mobile app", "api", "billing portal",
	"desktop app", "browser extension",
}

var knownFeatures = []string{
	"notifications", "reports", "export", "sso",
	"dark mode", "webhooks", "integrations",
}
