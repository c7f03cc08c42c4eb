package assist

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/p-n-ai/sinifplanim/internal/ai"
)

const (
	NoticeParseFailed = "Dosya ayrıştırılamadı."
	NoticeParseError  = "Dosya ayrıştırılırken bir hata oluştu."

	maxListBytes = 512 << 10
)

// ParsedStudent is one row of an uploaded student list.
type ParsedStudent struct {
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
}

// ParsedClass groups the students found under one class heading or sheet.
type ParsedClass struct {
	ClassName string          `json:"className"`
	Students  []ParsedStudent `json:"students"`
}

// StudentListResult carries the parsed classes, or the fallback notice.
type StudentListResult struct {
	Classes []ParsedClass `json:"classes,omitempty"`
	Result
}

const studentListSchema = `{
  "type": "object",
  "required": ["classes"],
  "properties": {
    "classes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["className", "students"],
        "properties": {
          "className": {"type": "string"},
          "students": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "number": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

var studentSchema = mustSchema(studentListSchema)

var zipMagic = []byte("PK\x03\x04")

// ParseStudentList extracts classes and students from an uploaded file.
// Spreadsheets are read locally and cost nothing. Any other text file is
// handed to the model and its answer is validated.
func (s *Service) ParseStudentList(ctx context.Context, userID, filename string, data []byte) (StudentListResult, error) {
	if len(data) == 0 {
		return StudentListResult{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if len(data) > maxListBytes {
		return StudentListResult{}, fmt.Errorf("%w: file is larger than %d bytes", ErrInvalidInput, maxListBytes)
	}

	if strings.EqualFold(filepath.Ext(filename), ".xlsx") || bytes.HasPrefix(data, zipMagic) {
		classes, err := ReadSpreadsheet(data)
		if err != nil {
			slog.Warn("student list spreadsheet unreadable", "user_id", userID, "file", filename, "error", err)
			return StudentListResult{Result: Result{Fallback: true, Notice: NoticeParseError}}, nil
		}
		if len(classes) == 0 {
			return StudentListResult{Result: Result{Fallback: true, Notice: NoticeParseFailed}}, nil
		}
		return StudentListResult{Classes: classes}, nil
	}

	if !utf8.Valid(data) {
		return StudentListResult{Result: Result{Fallback: true, Notice: NoticeParseError}}, nil
	}

	var out struct {
		Classes []ParsedClass `json:"classes"`
	}
	ok, err := s.completeJSON(ctx, userID, prompt(ai.TaskParsing,
		"Extract the class lists from the document below. Reply with a JSON object "+
			`{"classes":[{"className":string,"students":[{"name":string,"number":string}]}]}. `+
			"Use the class headings from the document. Leave number empty when the document has none.",
		string(data),
	), studentSchema, &out)
	if err != nil {
		return StudentListResult{}, err
	}
	if !ok {
		return StudentListResult{Result: Result{Fallback: true, Notice: NoticeParseFailed}}, nil
	}
	return StudentListResult{Classes: out.Classes}, nil
}

var lower = cases.Lower(language.Turkish)

// ReadSpreadsheet reads every sheet of an .xlsx workbook as one class named
// after the sheet. A header row naming the name and number columns is used
// when present. Otherwise a leading numeric column is the student number.
func ReadSpreadsheet(data []byte) ([]ParsedClass, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var classes []ParsedClass
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		students := readRows(rows)
		if len(students) == 0 {
			continue
		}
		classes = append(classes, ParsedClass{ClassName: strings.TrimSpace(sheet), Students: students})
	}
	return classes, nil
}

func readRows(rows [][]string) []ParsedStudent {
	nameCol, numCol, start := -1, -1, 0
	for i, row := range rows {
		n, m := headerColumns(row)
		if n >= 0 {
			nameCol, numCol, start = n, m, i+1
			break
		}
	}

	var out []ParsedStudent
	for _, row := range rows[start:] {
		var st ParsedStudent
		if nameCol >= 0 {
			st.Name = cell(row, nameCol)
			if numCol >= 0 {
				st.Number = cell(row, numCol)
			}
		} else {
			st = guessRow(row)
		}
		if st.Name != "" {
			out = append(out, st)
		}
	}
	return out
}

// headerColumns returns the name and number column of a header row, or -1
// for the name column when row is not a header.
func headerColumns(row []string) (name, number int) {
	name, number = -1, -1
	for i, c := range row {
		h := lower.String(strings.TrimSpace(c))
		switch {
		case h == "no" || h == "numara" || h == "okul no" || h == "öğrenci no" || h == "sıra no":
			if number < 0 {
				number = i
			}
		case name < 0 && (nameHeaders[h] || strings.Contains(h, "soyad")):
			name = i
		}
	}
	return name, number
}

var nameHeaders = map[string]bool{
	"ad": true, "adı": true, "isim": true, "öğrenci": true, "öğrenci adı": true, "adı ve soyadı": true,
}

func guessRow(row []string) ParsedStudent {
	var cells []string
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	switch {
	case len(cells) == 0:
		return ParsedStudent{}
	case len(cells) >= 2 && isNumber(cells[0]):
		return ParsedStudent{Number: cells[0], Name: strings.Join(cells[1:], " ")}
	case isNumber(cells[0]):
		return ParsedStudent{}
	default:
		return ParsedStudent{Name: strings.Join(cells, " ")}
	}
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
