package normalize

import (
	"bufio"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"MarketPulse/internal/domain/models"
)

type sectionField int

const (
	fieldNone sectionField = iota
	fieldNews
	fieldComments
	fieldSentiment
	fieldFinal
)

var headerAliases = []struct {
	field   sectionField
	prefixs []string
}{
	{fieldNews, []string{"global news summary", "global news", "news summary", "news"}},
	{fieldComments, []string{"user comments summary", "user comments", "community comments", "community"}},
	{fieldSentiment, []string{"market sentiment summary", "market sentiment", "sentiment"}},
	{fieldFinal, []string{"final summary", "overall summary", "conclusion", "final"}},
}

var headerDecoration = regexp.MustCompile(`^[\s#*>\-\d.)]+|[\s*:#]+$`)

// ParseAnalysisSections extracts the four sections from provider text. JSON
// output is preferred; header-delimited prose is accepted as a fallback.
// Text with no recognizable section fails with models.ErrProviderMalformed.
// Sections the provider left out are filled with their default sentence.
func ParseAnalysisSections(text, asset string) (models.AnalysisSections, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.AnalysisSections{}, fmt.Errorf("empty analysis: %w", models.ErrProviderMalformed)
	}

	s, ok := parseJSONSections(text)
	if !ok || s.Filled() == 0 {
		var err error
		if s, err = parseHeaderSections(text); err != nil {
			return models.AnalysisSections{}, fmt.Errorf("scan sections: %w: %w", models.ErrProviderMalformed, err)
		}
	}
	if s.Filled() == 0 {
		return models.AnalysisSections{}, fmt.Errorf("no sections found: %w", models.ErrProviderMalformed)
	}
	return s.WithDefaults(asset), nil
}

func parseJSONSections(text string) (models.AnalysisSections, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return models.AnalysisSections{}, false
	}
	var s models.AnalysisSections
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil {
		return models.AnalysisSections{}, false
	}
	s.GlobalNewsSummary = strings.TrimSpace(s.GlobalNewsSummary)
	s.UserCommentsSummary = strings.TrimSpace(s.UserCommentsSummary)
	s.MarketSentimentSummary = strings.TrimSpace(s.MarketSentimentSummary)
	s.FinalSummary = strings.TrimSpace(s.FinalSummary)
	return s, true
}

func parseHeaderSections(text string) (models.AnalysisSections, error) {
	bodies := map[sectionField]*strings.Builder{}
	current := fieldNone

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if f, rest, ok := matchHeader(line); ok {
			current = f
			if bodies[f] == nil {
				bodies[f] = &strings.Builder{}
			}
			if rest != "" {
				bodies[f].WriteString(rest)
			}
			continue
		}
		if current == fieldNone {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		b := bodies[current]
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(trimmed)
	}
	if err := sc.Err(); err != nil {
		return models.AnalysisSections{}, err
	}

	get := func(f sectionField) string {
		if b := bodies[f]; b != nil {
			return strings.TrimSpace(b.String())
		}
		return ""
	}
	return models.AnalysisSections{
		GlobalNewsSummary:      get(fieldNews),
		UserCommentsSummary:    get(fieldComments),
		MarketSentimentSummary: get(fieldSentiment),
		FinalSummary:           get(fieldFinal),
	}, nil
}

// matchHeader recognizes lines like "## Market Sentiment", "**Final Summary:**"
// or "1. Global News: text". Text after a colon on the header line is returned.
func matchHeader(line string) (sectionField, string, bool) {
	head, rest, hasColon := strings.Cut(line, ":")
	label := strings.ToLower(headerDecoration.ReplaceAllString(head, ""))
	if label == "" {
		return fieldNone, "", false
	}
	isDecorated := hasColon || strings.HasPrefix(strings.TrimSpace(line), "#") || strings.HasPrefix(strings.TrimSpace(line), "**")
	if !isDecorated {
		return fieldNone, "", false
	}
	for _, h := range headerAliases {
		for _, p := range h.prefixs {
			if label == p {
				return h.field, strings.TrimSpace(strings.Trim(rest, "* ")), true
			}
		}
	}
	return fieldNone, "", false
}
