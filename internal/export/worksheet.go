// Package export writes generated questions to spreadsheet worksheets
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"heatloss-engine/internal/models"
)

// ContentType of a written worksheet
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names
const (
	QuestionsSheet = "Questions"
	AnswersSheet   = "Answers"
)

// Rows reserved for each chart on the answers sheet
const chartRows = 28

// chartScale shrinks the solution image to fit the reserved rows
const chartScale = 0.6

// ErrNoQuestions is returned when there is nothing to export
var ErrNoQuestions = errors.New("no questions to export")

var questionHeader = []interface{}{
	"#", "ID", "Kind", "Construction", "Length (m)", "Height (m)",
	"T inside (°C)", "T outside (°C)", "Layers", "Seed", "Prompt",
}

var answerHeader = []interface{}{
	"#", "R total (m²K/W)", "U (W/m²K)", "Q (W)", "Direction", "Solution",
}

// WriteWorksheet writes an xlsx workbook with a Questions sheet for students
// and an Answers sheet holding the results and solution chart of each question
func WriteWorksheet(w io.Writer, questions []*models.QuestionPayload) error {
	f, err := NewWorkbook(questions)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// NewWorkbook builds the worksheet in memory. The caller must Close it.
func NewWorkbook(questions []*models.QuestionPayload) (*excelize.File, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", QuestionsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(AnswersSheet); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeQuestions(f, questions, bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("questions sheet: %w", err)
	}
	if err := writeAnswers(f, questions, bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("answers sheet: %w", err)
	}

	return f, nil
}

func writeQuestions(f *excelize.File, questions []*models.QuestionPayload, headerStyle int) error {
	sw, err := f.NewStreamWriter(QuestionsSheet)
	if err != nil {
		return err
	}

	if err := sw.SetColWidth(9, 9, 60); err != nil {
		return err
	}
	if err := sw.SetColWidth(11, 11, 100); err != nil {
		return err
	}

	if err := sw.SetRow("A1", styled(questionHeader, headerStyle)); err != nil {
		return err
	}

	for i, q := range questions {
		if q == nil || q.Parameters == nil {
			return fmt.Errorf("question %d has no parameters", i+1)
		}
		p := q.Parameters
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, []interface{}{
			i + 1,
			q.ID,
			string(q.Kind),
			p.Construction,
			p.LengthM,
			p.HeightM,
			p.InsideTempC,
			p.OutsideTempC,
			layerSummary(p.Layers),
			q.Seed,
			q.Prompt,
		}); err != nil {
			return err
		}
	}

	return sw.Flush()
}

func writeAnswers(f *excelize.File, questions []*models.QuestionPayload, headerStyle int) error {
	for col, title := range answerHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(AnswersSheet, cell, title); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(AnswersSheet, "A1", "F1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(AnswersSheet, "B", "E", 16); err != nil {
		return err
	}

	for i, q := range questions {
		if q.Solution == nil {
			return fmt.Errorf("question %d has no solution", i+1)
		}
		row := 2 + i*chartRows
		s := q.Solution

		values := []interface{}{i + 1, s.TotalResistance, s.UValue, s.HeatLoss, string(s.Direction)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(AnswersSheet, cell, v); err != nil {
				return err
			}
		}

		if len(q.SolutionImage) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(6, row)
		if err := f.AddPictureFromBytes(AnswersSheet, cell, &excelize.Picture{
			Extension: ".png",
			File:      q.SolutionImage,
			Format: &excelize.GraphicOptions{
				AltText: fmt.Sprintf("Solution %d: %s", i+1, q.Parameters.Construction),
				ScaleX:  chartScale,
				ScaleY:  chartScale,
			},
		}); err != nil {
			return fmt.Errorf("chart %d: %w", i+1, err)
		}
	}
	return nil
}

func styled(values []interface{}, style int) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = excelize.Cell{StyleID: style, Value: v}
	}
	return out
}

func layerSummary(layers []models.ResolvedLayer) string {
	var s string
	for i, l := range layers {
		if i > 0 {
			s += " | "
		}
		if l.FixedResistance != nil {
			s += fmt.Sprintf("%s (R %g)", l.Label(), *l.FixedResistance)
			continue
		}
		s += fmt.Sprintf("%s %.1f mm", l.Label(), l.ThicknessM*1000)
	}
	return s
}
