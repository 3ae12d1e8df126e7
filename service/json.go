package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Model responses are asked for bare JSON but sometimes arrive wrapped in
// prose or markdown fences; these helpers cut out the JSON payload and
// validate it where the shape is strict.

var checklistSchema = jsonschema.MustCompileString("checklist.json", `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["item"],
		"properties": {
			"item": {"type": "string"},
			"status": {"type": "string"},
			"required_by_policy_citation": {"type": "string"},
			"notes": {"type": "string"}
		}
	}
}`)

var draftSchema = jsonschema.MustCompileString("draft.json", `{
	"type": "object",
	"required": ["appeal_letter"],
	"properties": {
		"reviewable": {"type": "boolean"},
		"appeal_letter": {"type": "string"},
		"attachments_checklist": {"type": "array", "items": {"type": "string"}},
		"citations_used": {"type": "array", "items": {"type": "string"}}
	}
}`)

// extractJSONBlock returns the outermost JSON value delimited by opening
// and closing (e.g. '{'/'}' or '['/']') inside raw.
func extractJSONBlock(raw string, opening, closing byte) (string, error) {
	start := strings.IndexByte(raw, opening)
	end := strings.LastIndexByte(raw, closing)
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON payload in response", ErrMalformedResponse)
	}
	return raw[start : end+1], nil
}

// decodeValidated unmarshals blob and checks it against schema before
// decoding into out.
func decodeValidated(blob string, schema *jsonschema.Schema, out interface{}) error {
	var generic interface{}
	if err := json.Unmarshal([]byte(blob), &generic); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal([]byte(blob), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
