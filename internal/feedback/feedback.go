// Package feedback derives age-appropriate automated messages from quiz
// responses. Messages are generated on demand and never persisted on their
// own; they live inside the quiz session that produced them.
//
// Every template is deliberately warm and non-accusatory. The monitor exists
// to support guardians, not to confront students, so no message may imply
// wrongdoing regardless of what the detector flagged.
package feedback

import (
	"integrityd/internal/score"
)

// Type categorizes a feedback message.
type Type string

const (
	TypeEncouragement Type = "encouragement"
	TypeSuggestion    Type = "suggestion"
	TypeQuestion      Type = "question"
	TypeConcern       Type = "concern"
)

// Priority orders messages when the activity UI can only show a few.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Message is a single piece of automated feedback tied to a question.
type Message struct {
	Type       Type     `json:"type"`
	Message    string   `json:"message"`
	QuestionID string   `json:"question_id,omitempty"`
	Priority   Priority `json:"priority"`
}

// Response rule thresholds.
const (
	QuickAnswerSec     = 10.0
	LongAnswerSec      = 300.0
	ManyRevisions      = 5
	ShortAnswerRunes   = 20
)

// templates keyed by rule, with a simpler wording for grades 3-4.
type template struct {
	lower string // grades 3 and 4
	upper string // grades 5 and 6
}

var (
	slowDownTemplate = template{
		lower: "That was quick! Try reading the question one more time before you answer.",
		upper: "Quick answer! Take a moment to re-read the question and make sure you covered everything.",
	}
	carefulThinkingTemplate = template{
		lower: "You are taking your time and thinking hard. Great job!",
		upper: "Nice work taking the time to think this one through carefully.",
	}
	elaborateTemplate = template{
		lower: "Can you tell me a little more about why you picked that answer?",
		upper: "What made you choose that answer? Adding your reasoning makes it even stronger.",
	}
	persistenceTemplate = template{
		lower: "You kept trying until it felt right. That is how learning works!",
		upper: "Reworking your answer shows real persistence. Keep it up!",
	}
	doubleCheckTemplate = template{
		lower: "Before you move on, give your answer one more look to be sure.",
		upper: "You wrote that in one go. A quick re-read is a good habit before moving on.",
	}
)

func (t template) forGrade(grade int) string {
	if grade >= 5 {
		return t.upper
	}
	return t.lower
}

// ForResponse generates zero or more messages for a single quiz response.
// Rules are independent; a response can earn several messages at once.
func ForResponse(questionID, answer string, timeSpentSec float64, revisions int, confidence score.Confidence, grade int) []Message {
	var messages []Message

	add := func(typ Type, tpl template, prio Priority) {
		messages = append(messages, Message{
			Type:       typ,
			Message:    tpl.forGrade(grade),
			QuestionID: questionID,
			Priority:   prio,
		})
	}

	if timeSpentSec < QuickAnswerSec {
		add(TypeSuggestion, slowDownTemplate, PriorityMedium)
	}
	if timeSpentSec > LongAnswerSec {
		add(TypeEncouragement, carefulThinkingTemplate, PriorityLow)
	}
	if confidence == score.ConfidenceLow {
		add(TypeQuestion, elaborateTemplate, PriorityMedium)
	}
	if revisions > ManyRevisions {
		add(TypeEncouragement, persistenceTemplate, PriorityLow)
	}
	if revisions == 0 && len([]rune(answer)) > ShortAnswerRunes {
		add(TypeSuggestion, doubleCheckTemplate, PriorityMedium)
	}

	return messages
}
