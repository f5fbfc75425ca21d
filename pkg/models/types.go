package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Gender scopes both generation requests and featured keyword lists
type Gender string

const (
	// GenderLadies selects the ladies catalogue
	GenderLadies Gender = "ladies"
	// GenderMens selects the mens catalogue
	GenderMens Gender = "mens"
)

// Valid reports whether g is one of the supported genders
func (g Gender) Valid() bool {
	return g == GenderLadies || g == GenderMens
}

// ParseGender converts user input into a Gender
func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("invalid gender %q: expected ladies or mens", s)
	}
	return g, nil
}

// Error codes returned by the generation service in the error envelope
const (
	ErrorCodeFeaturedKeywords = "FEATURED_KEYWORDS_ERROR"
	ErrorCodeNoResults        = "NO_RESULTS_FOUND"
	ErrorCodeValidation       = "VALIDATION_ERROR"
	ErrorCodeUnknown          = "UNKNOWN_ERROR"
)

// GenerationRequest is the body of a single generate call
type GenerationRequest struct {
	Keyword string `json:"keyword"`
	Gender  Gender `json:"gender"`
	Season  string `json:"season"`
	Model   string `json:"model"`
}

// Template is one generated salon post template
type Template struct {
	Title               string       `json:"title"`
	Menu                string       `json:"menu"`
	Comment             string       `json:"comment"`
	Hashtag             HashtagField `json:"hashtag"`
	IsFeatured          bool         `json:"is_featured,omitempty"`
	FeaturedKeywordName string       `json:"featured_keyword_name,omitempty"`
}

// HashtagField holds the hashtag value, which the service sends either as
// a single string or as a list of strings
type HashtagField struct {
	Text   string
	List   []string
	IsList bool
}

// Hashtags builds a list-form HashtagField
func Hashtags(tags ...string) HashtagField {
	return HashtagField{List: tags, IsList: true}
}

// HashtagText builds a string-form HashtagField
func HashtagText(text string) HashtagField {
	return HashtagField{Text: text}
}

// UnmarshalJSON accepts a string, an array of strings or null
func (h *HashtagField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*h = HashtagField{}
		return nil
	}
	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("hashtag list: %w", err)
		}
		*h = HashtagField{List: list, IsList: true}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("hashtag: %w", err)
	}
	*h = HashtagField{Text: text}
	return nil
}

// MarshalJSON re-encodes the value in the form it was received
func (h HashtagField) MarshalJSON() ([]byte, error) {
	if h.IsList {
		list := h.List
		if list == nil {
			list = []string{}
		}
		return json.Marshal(list)
	}
	return json.Marshal(h.Text)
}

// Join returns list values joined by sep; string values are returned as-is
func (h HashtagField) Join(sep string) string {
	if h.IsList {
		return strings.Join(h.List, sep)
	}
	return h.Text
}

// String renders lists comma-separated, matching how the web client printed them
func (h HashtagField) String() string {
	return h.Join(",")
}

// FeaturedKeywordInfo names the featured keyword a result was generated for
type FeaturedKeywordInfo struct {
	Name string `json:"name"`
}

// ErrorBody is the error envelope carried by unsuccessful responses
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GenerateResponse is the decoded generate payload.
// Success is a pointer so that an absent flag can be told apart from false.
type GenerateResponse struct {
	Success             *bool                `json:"success"`
	Templates           []Template           `json:"templates"`
	IsFeatured          bool                 `json:"is_featured,omitempty"`
	FeaturedKeywordInfo *FeaturedKeywordInfo `json:"featured_keyword_info,omitempty"`
	Error               *ErrorBody           `json:"error,omitempty"`
	Message             string               `json:"message,omitempty"`
	Status              int                  `json:"status,omitempty"`
}

// Succeeded treats an absent success flag as success
func (r *GenerateResponse) Succeeded() bool {
	return r.Success == nil || *r.Success
}

// ErrorCode returns the envelope code or UNKNOWN_ERROR
func (r *GenerateResponse) ErrorCode() string {
	if r.Error != nil && r.Error.Code != "" {
		return r.Error.Code
	}
	return ErrorCodeUnknown
}

// ErrorMessage returns the most specific message the payload carries
func (r *GenerateResponse) ErrorMessage() string {
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Message
	}
	return r.Message
}

// Bool returns a pointer to b, for building payloads in code and tests
func Bool(b bool) *bool {
	return &b
}
