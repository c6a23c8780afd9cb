package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/lubeqc/internal/catalog"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
)

type Answer string

const (
	AnswerYes Answer = "Yes"
	AnswerNo  Answer = "No"
)

// ParseAnswer accepts Yes/No in any case; anything else is unanswered.
func ParseAnswer(raw string) Answer {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true":
		return AnswerYes
	case "no", "n", "false":
		return AnswerNo
	}
	return ""
}

type Status string

const (
	StatusGreen Status = "green"
	StatusRed   Status = "red"
)

// Response is the answer to one checklist question plus the follow-up text
// shown when the answer raises a flag.
type Response struct {
	Answer   Answer `json:"answer"`
	FollowUp string `json:"followUp,omitempty"`
}

// Entry is one inspected asset. Responses holds questions 1 to 7 in order.
type Entry struct {
	AssetID       string       `json:"asset"`
	Amount        *float64     `json:"amount"`
	Unit          catalog.Unit `json:"unit"`
	LubricantType string       `json:"lubricantType"`
	Responses     [7]Response  `json:"responses"`
	Comments      string       `json:"comments"`
}

func (e Entry) Answer(question int) Answer {
	if question < 1 || question > len(e.Responses) {
		return ""
	}
	return ParseAnswer(string(e.Responses[question-1].Answer))
}

// Submission is a completed QA/QC checklist.
type Submission struct {
	BusinessUnit string  `json:"businessUnit"`
	Department   string  `json:"department"`
	WorkOrder    string  `json:"wo"`
	Route        string  `json:"route"`
	Inspector    string  `json:"inspector"`
	ExecDate     string  `json:"execDate"`
	ExecTime     string  `json:"execTime"`
	Entries      []Entry `json:"entries"`
}

// Question describes a checklist item and the answer that flags it.
type Question struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	FlagOn Answer `json:"flagOn"`
	Flag   string `json:"flag"`
}

var Questions = [7]Question{
	{Number: 1, Text: "Was the lubrication point lubricated as per WI standard?", FlagOn: AnswerNo, Flag: "Lubrication point issues."},
	{Number: 2, Text: "Was there any inconsistency with the volume added/purged to the pillow block/bearing?", FlagOn: AnswerYes, Flag: "Volume inconsistency."},
	{Number: 3, Text: "Are the hoses, grease nipples, and other lubricant components in good condition?", FlagOn: AnswerNo, Flag: "Component condition issue."},
	{Number: 4, Text: "Is there any sign of damage, malfunction, and/or leakage in the lubrication point indicated in the WI?", FlagOn: AnswerYes, Flag: "Damage/leakage."},
	{Number: 5, Text: "Was the purged grease hardened or visually degraded compared to new grease?", FlagOn: AnswerYes, Flag: "Grease condition out of spec."},
	{Number: 6, Text: "Is the lubrication ID label present and legible (correct grease/oil spec)?", FlagOn: AnswerNo, Flag: "Label/ID issue."},
	{Number: 7, Text: "Guards in place; access safe; purge path clear?", FlagOn: AnswerNo, Flag: "Safety/access concern."},
}

const (
	AmountQuestion   = "1B — Amount of lubricant inserted/filled"
	CommentsQuestion = "8 — Additional comments"
	NoFollowUp       = "No specific comment provided."
	PlaceholderWO    = "TIN-XXXXX"
)

// Outcome is the rendered result of a submission.
type Outcome struct {
	Status    Status   `json:"status"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Flags     []string `json:"flags"`
	Mailto    string   `json:"mailto"`
	Persisted int      `json:"persisted"`
	RecordIDs []string `json:"recordIds"`
	PDFName   string   `json:"pdfName"`
}

// Route is one maintenance route; only allowed routes unlock the checklist.
type Route struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Line        string `json:"line"`
	Allowed     bool   `json:"allowed"`
}

// Draft holds in-progress form fields keyed by field id.
type Draft map[string]string

var (
	ErrInvalidWorkOrder   = errors.New("invalid_work_order")
	ErrInvalidAsset       = errors.New("invalid_asset")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidComments    = errors.New("invalid_comments")
	ErrInvalidInspector   = errors.New("invalid_inspector")
	ErrInvalidExecDate    = errors.New("invalid_exec_date")
	ErrInvalidExecTime    = errors.New("invalid_exec_time")
	ErrRouteLocked        = errors.New("invalid_route")
	ErrNoRecentSubmission = errors.New("no_recent_submission")
	ErrInvalidDraft       = errors.New("invalid_draft")
	ErrInvalidQuestion1   = errors.New("invalid_q1")
	ErrInvalidQuestion2   = errors.New("invalid_q2")
	ErrInvalidQuestion3   = errors.New("invalid_q3")
	ErrInvalidQuestion4   = errors.New("invalid_q4")
	ErrInvalidQuestion5   = errors.New("invalid_q5")
	ErrInvalidQuestion6   = errors.New("invalid_q6")
	ErrInvalidQuestion7   = errors.New("invalid_q7")
)

var questionErrors = [7]error{
	ErrInvalidQuestion1,
	ErrInvalidQuestion2,
	ErrInvalidQuestion3,
	ErrInvalidQuestion4,
	ErrInvalidQuestion5,
	ErrInvalidQuestion6,
	ErrInvalidQuestion7,
}

// QuestionError is the validation error for an unanswered question.
func QuestionError(question int) error {
	if question < 1 || question > len(questionErrors) {
		return nil
	}
	return questionErrors[question-1]
}

var messages = map[error]string{
	ErrInvalidWorkOrder:   "Please, enter Assigned WO#.",
	ErrInvalidAsset:       "Please select the Equipment / Asset ID.",
	ErrInvalidQuestion1:   "Please answer question 1.",
	ErrInvalidAmount:      "Please fill 1B (Amount).",
	ErrInvalidQuestion2:   "Please answer question 2.",
	ErrInvalidQuestion3:   "Please answer question 3.",
	ErrInvalidQuestion4:   "Please answer question 4.",
	ErrInvalidQuestion5:   "Please answer question 5.",
	ErrInvalidQuestion6:   "Please answer question 6.",
	ErrInvalidQuestion7:   "Please answer question 7.",
	ErrInvalidComments:    "Please fill question 8 (comments).",
	ErrInvalidInspector:   "Please enter the Inspector / Technician name.",
	ErrInvalidExecDate:    "Please enter the execution date.",
	ErrInvalidExecTime:    "Please enter the execution time.",
	ErrRouteLocked:        "Select an allowed route to unlock the checklist.",
	ErrNoRecentSubmission: "No recent QA/QC data",
}

// Message returns the operator-facing text for a validation code.
func Message(code string) (string, bool) {
	for err, msg := range messages {
		if err.Error() == code {
			return msg, true
		}
	}
	return "", false
}

type Service interface {
	Submit(ctx context.Context, sub Submission) (Outcome, error)
	// Evaluate validates and renders without persisting anything.
	Evaluate(ctx context.Context, sub Submission) (Outcome, error)
	Prefill(ctx context.Context) (consumptiondomain.RecordInput, error)
	Routes() []Route
	Draft(ctx context.Context) (Draft, error)
	SaveDraft(ctx context.Context, draft Draft) error
	ClearDraft(ctx context.Context) error
}
