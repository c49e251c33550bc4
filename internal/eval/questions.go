package eval

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Question is one labeled evaluation question.
type Question struct {
	Question        string
	ExpectedSources []string // doc IDs the answer should draw from, may be empty
	Category        string
	Difficulty      string
}

var questionColumns = []string{"question", "expected_sources", "category", "difficulty"}

// LoadQuestionSet reads a labeled question set from a CSV file.
func LoadQuestionSet(filePath string) ([]Question, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open question set: %w", err)
	}
	defer file.Close()
	return ReadQuestionSet(file)
}

// ReadQuestionSet parses a question set CSV. The header must name the columns
// question, expected_sources, category, difficulty in that order.
func ReadQuestionSet(r io.Reader) ([]Question, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read question set header: %w", err)
	}
	if err := validateQuestionHeader(header); err != nil {
		return nil, err
	}

	var questions []Question
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read question set line %d: %w", line, err)
		}

		question := strings.TrimSpace(record[0])
		if question == "" {
			return nil, fmt.Errorf("question set line %d: empty question", line)
		}

		questions = append(questions, Question{
			Question:        question,
			ExpectedSources: splitSources(record[1]),
			Category:        strings.TrimSpace(record[2]),
			Difficulty:      strings.TrimSpace(record[3]),
		})
	}
	return questions, nil
}

func validateQuestionHeader(header []string) error {
	if len(header) != len(questionColumns) {
		return fmt.Errorf("question set header has %d columns, want %d", len(header), len(questionColumns))
	}
	for i, want := range questionColumns {
		got := strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
		if !strings.EqualFold(got, want) {
			return fmt.Errorf("question set header column %d is %q, want %q", i+1, header[i], want)
		}
	}
	return nil
}

// splitSources parses the comma-separated expected_sources cell.
func splitSources(cell string) []string {
	var sources []string
	for _, part := range strings.Split(cell, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sources = append(sources, trimmed)
		}
	}
	return sources
}
