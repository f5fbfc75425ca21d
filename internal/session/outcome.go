package session

import (
	"fmt"
	"time"

	"github.com/lamim/salonforge/internal/api"
	"github.com/lamim/salonforge/pkg/models"
)

// OutcomeKind is how one submit settled
type OutcomeKind string

const (
	OutcomeSuccess              OutcomeKind = "success"
	OutcomeValidationError      OutcomeKind = "validation_error"
	OutcomeTimedOut             OutcomeKind = "timed_out"
	OutcomeNetworkUnavailable   OutcomeKind = "network_unavailable"
	OutcomeServerError          OutcomeKind = "server_error"
	OutcomeLogicalFailure       OutcomeKind = "logical_failure"
	OutcomeInvalidResponseShape OutcomeKind = "invalid_response_shape"
	OutcomeUnknown              OutcomeKind = "unknown"
	OutcomeBusy                 OutcomeKind = "busy"
)

// LogicalCode is the fixed set of server error codes the client acts on
type LogicalCode string

const (
	CodeFeaturedKeywordsError LogicalCode = "featured_keywords_error"
	CodeNoResultsFound        LogicalCode = "no_results_found"
	CodeValidationError       LogicalCode = "validation_error"
	CodeUnknown               LogicalCode = "unknown"
)

// ClassifyCode maps a wire error code onto LogicalCode
func ClassifyCode(code string) LogicalCode {
	switch code {
	case models.ErrorCodeFeaturedKeywords:
		return CodeFeaturedKeywordsError
	case models.ErrorCodeNoResults:
		return CodeNoResultsFound
	case models.ErrorCodeValidation:
		return CodeValidationError
	default:
		return CodeUnknown
	}
}

// Outcome is the settled result of one submit
type Outcome struct {
	Kind         OutcomeKind
	Code         LogicalCode // set for OutcomeLogicalFailure
	Message      string
	StatusCode   int
	Templates    []models.Template
	Featured     bool
	FeaturedName string
	Request      models.GenerationRequest
	RequestID    string
	StartedAt    time.Time
	Duration     time.Duration
	Err          error
}

// Succeeded reports whether templates were produced
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Settled reports whether a request was actually sent
func (o Outcome) Settled() bool {
	return o.Kind != OutcomeValidationError && o.Kind != OutcomeBusy
}

func transportOutcome(err error) Outcome {
	o := Outcome{Err: err, StatusCode: api.StatusCode(err)}
	switch api.KindOf(err) {
	case api.KindTimeout:
		o.Kind = OutcomeTimedOut
		o.Message = "The request timed out. Please try again."
	case api.KindNetwork:
		o.Kind = OutcomeNetworkUnavailable
		o.Message = "Could not reach the server. Check your connection and try again."
	case api.KindServer:
		o.Kind = OutcomeServerError
		o.Message = fmt.Sprintf("The server returned an error (status %d).", o.StatusCode)
	case api.KindInvalidResponse:
		o.Kind = OutcomeInvalidResponseShape
		o.Message = "The server returned an unexpected response."
	default:
		o.Kind = OutcomeUnknown
		o.Message = "An unexpected error occurred."
	}
	return o
}

func responseOutcome(resp *models.GenerateResponse) Outcome {
	if resp == nil {
		return Outcome{Kind: OutcomeInvalidResponseShape, Message: "The server returned an empty response."}
	}
	if !resp.Succeeded() {
		code := ClassifyCode(resp.ErrorCode())
		msg := resp.ErrorMessage()
		if msg == "" {
			msg = defaultLogicalMessage(code)
		}
		return Outcome{Kind: OutcomeLogicalFailure, Code: code, Message: msg, StatusCode: resp.Status}
	}
	if resp.Templates == nil {
		return Outcome{Kind: OutcomeInvalidResponseShape, Message: "The server response did not include templates."}
	}

	o := Outcome{
		Kind:      OutcomeSuccess,
		Templates: append([]models.Template(nil), resp.Templates...),
		Featured:  resp.IsFeatured,
	}
	if resp.FeaturedKeywordInfo != nil {
		o.FeaturedName = resp.FeaturedKeywordInfo.Name
	}
	if o.Featured {
		for i := range o.Templates {
			o.Templates[i].IsFeatured = true
			if o.FeaturedName != "" {
				o.Templates[i].FeaturedKeywordName = o.FeaturedName
			}
		}
	}
	return o
}

func defaultLogicalMessage(code LogicalCode) string {
	switch code {
	case CodeFeaturedKeywordsError:
		return "Featured keywords could not be used for this request."
	case CodeNoResultsFound:
		return "No results were found for this keyword."
	case CodeValidationError:
		return "The request was rejected as invalid."
	default:
		return "Generation failed."
	}
}
