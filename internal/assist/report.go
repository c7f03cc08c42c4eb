package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/sinifplanim/internal/ai"
)

const (
	NoticeIndividualReport = "Yapay zeka raporu oluşturulamadı."
	NoticeClassReport      = "Yapay zeka sınıf raporu oluşturulamadı."
)

// SurveySummary is one stored survey outcome handed to the model.
type SurveySummary struct {
	SurveyType string         `json:"surveyType"`
	Scores     map[string]int `json:"scores"`
	Top        []string       `json:"top,omitempty"`
}

// IndividualReportInput is what the teacher knows about one student.
type IndividualReportInput struct {
	StudentName string          `json:"studentName"`
	ClassName   string          `json:"className,omitempty"`
	Notes       []string        `json:"notes,omitempty"`
	Surveys     []SurveySummary `json:"surveys,omitempty"`
}

// IndividualReport is the structured report for one student.
type IndividualReport struct {
	Summary             string   `json:"summary"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areasForImprovement"`
	Recommendations     []string `json:"recommendations"`
}

// IndividualReportResult carries the report, or the fallback notice.
type IndividualReportResult struct {
	Report *IndividualReport `json:"report,omitempty"`
	Result
}

// ClassReportInput summarises a class for the model.
type ClassReportInput struct {
	ClassName    string          `json:"className"`
	StudentCount int             `json:"studentCount"`
	Notes        []string        `json:"notes,omitempty"`
	Surveys      []SurveySummary `json:"surveys,omitempty"`
}

// ClassReport is the structured report for a whole class.
type ClassReport struct {
	Summary         string   `json:"summary"`
	Trends          []string `json:"trends"`
	Recommendations []string `json:"recommendations"`
}

// ClassReportResult carries the report, or the fallback notice.
type ClassReportResult struct {
	Report *ClassReport `json:"report,omitempty"`
	Result
}

const individualReportSchema = `{
  "type": "object",
  "required": ["summary", "strengths", "areasForImprovement", "recommendations"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "areasForImprovement": {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}, "minItems": 1}
  }
}`

const classReportSchema = `{
  "type": "object",
  "required": ["summary", "trends", "recommendations"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "trends": {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}, "minItems": 1}
  }
}`

var (
	individualSchema = mustSchema(individualReportSchema)
	classSchema      = mustSchema(classReportSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded schema: %v", err))
	}
	return s
}

// stripFences removes a Markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeValidated checks raw against schema and decodes it into v.
func decodeValidated(schema *gojsonschema.Schema, raw string, v any) error {
	raw = stripFences(raw)
	res, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("validate output: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("output does not match schema: %s", strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	return nil
}

// completeJSON runs a JSON-mode request and decodes the validated output.
// It returns false when the model failed or produced invalid output; only
// accepted output is charged.
func (s *Service) completeJSON(ctx context.Context, userID string, req ai.CompletionRequest, schema *gojsonschema.Schema, v any) (bool, error) {
	req.JSON = true
	text, ok, err := s.generate(ctx, userID, req)
	if err != nil || !ok {
		return false, err
	}
	if err := decodeValidated(schema, text, v); err != nil {
		slog.Error("AI output rejected", "user_id", userID, "task", req.Task.String(), "error", err)
		return false, nil
	}
	s.record(ctx, userID, req.Task)
	return true, nil
}

func marshalInput(v any) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return string(data)
}

// IndividualReport writes a report about one student from the teacher's
// notes and the student's survey outcomes.
func (s *Service) IndividualReport(ctx context.Context, userID string, in IndividualReportInput) (IndividualReportResult, error) {
	if strings.TrimSpace(in.StudentName) == "" {
		return IndividualReportResult{}, fmt.Errorf("%w: student name is required", ErrInvalidInput)
	}

	var report IndividualReport
	ok, err := s.completeJSON(ctx, userID, prompt(ai.TaskReport,
		"You are an experienced school counsellor in Turkey. From the data below write a report about "+
			"the student in Turkish. Reply with a JSON object with the keys summary (string), strengths, "+
			"areasForImprovement and recommendations (arrays of strings).",
		marshalInput(in),
	), individualSchema, &report)
	if err != nil {
		return IndividualReportResult{}, err
	}
	if !ok {
		return IndividualReportResult{Result: Result{Fallback: true, Notice: NoticeIndividualReport}}, nil
	}
	return IndividualReportResult{Report: &report}, nil
}

// ClassReport writes a report about a class as a whole.
func (s *Service) ClassReport(ctx context.Context, userID string, in ClassReportInput) (ClassReportResult, error) {
	if strings.TrimSpace(in.ClassName) == "" {
		return ClassReportResult{}, fmt.Errorf("%w: class name is required", ErrInvalidInput)
	}

	var report ClassReport
	ok, err := s.completeJSON(ctx, userID, prompt(ai.TaskReport,
		"You are an experienced school counsellor in Turkey. From the class data below write a class "+
			"report in Turkish. Reply with a JSON object with the keys summary (string), trends and "+
			"recommendations (arrays of strings).",
		marshalInput(in),
	), classSchema, &report)
	if err != nil {
		return ClassReportResult{}, err
	}
	if !ok {
		return ClassReportResult{Result: Result{Fallback: true, Notice: NoticeClassReport}}, nil
	}
	return ClassReportResult{Report: &report}, nil
}
