package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// jsonFenceRe matches a JSON object wrapped in a markdown code fence, which
// several backends emit despite being told not to.
var jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// numberedLineRe matches "1. answer text" style lines for the fallback parser.
var numberedLineRe = regexp.MustCompile(`^\d+\.\s*`)

// extractJSON pulls the JSON object out of a model response, handling
// code-fence wrapping and leading/trailing prose.
func extractJSON(s string) (string, error) {
	if m := jsonFenceRe.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("llm: no JSON object found in response")
	}
	return s[start : end+1], nil
}

// parseAnswers extracts the answers list from a model response and
// normalizes it to exactly want entries: short lists are padded with the
// unanswerable placeholder, long lists are truncated. When JSON parsing
// fails entirely it falls back to scraping numbered lines from the raw
// response.
func parseAnswers(response string, want int) []string {
	answers, err := parseAnswersJSON(response)
	if err != nil {
		answers = fallbackParseAnswers(response)
	}

	for len(answers) < want {
		answers = append(answers, unanswerablePlaceholder)
	}
	return answers[:want]
}

// parseAnswersJSON parses the expected {"answers": [...]} structure.
func parseAnswersJSON(response string) ([]string, error) {
	raw, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Answers []string `json:"answers"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("llm: unmarshal answers: %w", err)
	}
	if parsed.Answers == nil {
		return nil, fmt.Errorf("llm: response JSON has no answers list")
	}
	return parsed.Answers, nil
}

// fallbackParseAnswers scrapes answers from a non-JSON response by treating
// numbered lines as answer starts and folding continuation lines into the
// current answer.
func fallbackParseAnswers(response string) []string {
	var answers []string
	var current string

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") ||
			strings.HasPrefix(line, "{") || strings.HasPrefix(line, "}") ||
			strings.HasPrefix(line, `"answers"`) {
			continue
		}

		if numberedLineRe.MatchString(line) {
			if current != "" {
				answers = append(answers, strings.TrimSpace(current))
			}
			current = numberedLineRe.ReplaceAllString(line, "")
			continue
		}
		if current != "" {
			current += " " + line
		} else {
			current = line
		}
	}
	if current != "" {
		answers = append(answers, strings.TrimSpace(current))
	}

	return answers
}

// parseRisks parses the {"risks": [...]} structure from a risk-analysis
// response.
func parseRisks(response string) ([]Risk, error) {
	raw, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Risks []Risk `json:"risks"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("llm: unmarshal risks: %w", err)
	}
	if parsed.Risks == nil {
		return nil, fmt.Errorf("llm: response JSON has no risks list")
	}
	return parsed.Risks, nil
}
