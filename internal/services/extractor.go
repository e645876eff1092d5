package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ExtractionError reports that no structured record could be recovered
// from a model response after every repair stage. It carries truncated
// snippets of the original and the final attempted text for diagnostics.
type ExtractionError struct {
	Stage     string
	Original  string
	Attempted string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract JSON from model response (%s): %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsExtractionError reports whether err is (or wraps) an ExtractionError.
func IsExtractionError(err error) bool {
	var extractionErr *ExtractionError
	return errors.As(err, &extractionErr)
}

var (
	codeBlockPattern     = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\s*(.*?)```")
	thinkBlockPattern    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
	adjacentObjsPattern  = regexp.MustCompile(`\}(\s*)\{`)
	adjacentStrsPattern  = regexp.MustCompile(`"\s*\n\s*"`)
	controlCharPattern   = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	projectsSpanPattern  = regexp.MustCompile(`(?s)"projects"\s*:\s*\[(.*?)\]`)
)

const (
	originalSnippetLimit  = 500
	attemptedSnippetLimit = 1500
)

// ExtractJSON recovers a structured record from raw model output.
//
// Stages, each only reached if the previous one did not yield parseable
// data: fenced code block content, <think> block removal, brace slicing
// (bracket slicing with a {"projects": …} wrap as fallback), strict
// parse, text repair and re-parse, and finally isolating and repairing
// just the "projects" array. Later stages are strictly more aggressive,
// so an earlier success always wins.
func ExtractJSON(text string) (map[string]interface{}, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{Stage: "input", Err: errors.New("model returned empty response")}
	}

	original := text

	// Stage 1: prefer the content of a fenced code block, any language tag.
	if m := codeBlockPattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)

	// Stage 2: drop reasoning blocks some models emit before the answer.
	text = strings.TrimSpace(thinkBlockPattern.ReplaceAllString(text, ""))
	cleaned := text

	// Stage 3: slice to the outermost object, or wrap a bare array.
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start != -1 && end > start {
		text = text[start : end+1]
	} else if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start != -1 && end > start {
		text = `{"projects": ` + text[start:end+1] + `}`
	}

	// Stage 4: strict parse.
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return result, nil
	}

	// Stage 5: repair pass, then retry.
	repaired := repairJSON(text)
	result = nil
	if err := json.Unmarshal([]byte(repaired), &result); err == nil {
		return result, nil
	}

	// Stage 6: isolate just the projects array and repair it alone. The
	// pre-slice text is searched because brace slicing can cut off the
	// array's closing bracket when the wrapper object is truncated.
	if m := projectsSpanPattern.FindStringSubmatch(cleaned); m != nil {
		arrayText := repairJSON("[" + m[1] + "]")
		var projects []interface{}
		if err := json.Unmarshal([]byte(arrayText), &projects); err == nil {
			return map[string]interface{}{"projects": projects}, nil
		}
	}

	return nil, &ExtractionError{
		Stage:     "parse",
		Original:  truncate(original, originalSnippetLimit),
		Attempted: truncate(repaired, attemptedSnippetLimit),
		Err:       errors.New("invalid JSON structure after all repair stages"),
	}
}

// repairJSON fixes the malformations LLMs most commonly produce:
// trailing commas, missing commas between adjacent objects or between
// quoted strings separated only by a newline, and stray control
// characters.
func repairJSON(text string) string {
	text = trailingCommaPattern.ReplaceAllString(text, "$1")
	text = adjacentObjsPattern.ReplaceAllString(text, "},$1{")
	text = adjacentStrsPattern.ReplaceAllString(text, "\",\n\"")
	text = controlCharPattern.ReplaceAllString(text, " ")
	return text
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
