package export

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/models"
	"heatloss-engine/internal/render"
	"heatloss-engine/internal/sampler"
	"heatloss-engine/internal/thermal"
)

func sampleQuestions(t *testing.T, kind models.QuestionKind, n int) []*models.QuestionPayload {
	t.Helper()
	c, err := catalog.LoadEmbedded(kind)
	require.NoError(t, err)

	renderer := render.New(render.DefaultOptions())
	out := make([]*models.QuestionPayload, 0, n)
	for i := 0; i < n; i++ {
		params, err := sampler.New(c, sampler.NewSource(int64(i))).Sample(3 + i%3)
		require.NoError(t, err)
		sol, err := thermal.Resolve(params)
		require.NoError(t, err)
		chart, err := renderer.Render(params, sol)
		require.NoError(t, err)

		out = append(out, &models.QuestionPayload{
			ID:            "q-" + strconv.Itoa(i),
			Kind:          kind,
			Prompt:        "prompt " + strconv.Itoa(i),
			Parameters:    params,
			Solution:      sol,
			SolutionImage: chart.PNG,
			Seed:          int64(i),
		})
	}
	return out
}

func readBack(t *testing.T, questions []*models.QuestionPayload) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteWorksheet(&buf, questions))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteWorksheet_Sheets(t *testing.T) {
	f := readBack(t, sampleQuestions(t, models.KindHeatLoss, 2))
	assert.Equal(t, []string{QuestionsSheet, AnswersSheet}, f.GetSheetList())
}

func TestWriteWorksheet_QuestionRows(t *testing.T) {
	questions := sampleQuestions(t, models.KindThermalBridging, 3)
	f := readBack(t, questions)

	rows, err := f.GetRows(QuestionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Construction", rows[0][3])

	for i, q := range questions {
		row := rows[i+1]
		assert.Equal(t, q.ID, row[1])
		assert.Equal(t, "thermal_bridging", row[2])
		assert.Equal(t, q.Parameters.Construction, row[3])
		assert.Equal(t, q.Prompt, row[10])
	}
}

func TestWriteWorksheet_AnswersMatchSolution(t *testing.T) {
	questions := sampleQuestions(t, models.KindHeatLoss, 3)
	f := readBack(t, questions)

	for i, q := range questions {
		row := 2 + i*chartRows

		for col, want := range map[int]float64{
			2: q.Solution.TotalResistance,
			3: q.Solution.UValue,
			4: q.Solution.HeatLoss,
		} {
			cell, err := excelize.CoordinatesToCellName(col, row)
			require.NoError(t, err)
			raw, err := f.GetCellValue(AnswersSheet, cell, excelize.Options{RawCellValue: true})
			require.NoError(t, err)
			got, err := strconv.ParseFloat(raw, 64)
			require.NoError(t, err, cell)
			assert.InDelta(t, want, got, 1e-9, cell)
		}

		cell, _ := excelize.CoordinatesToCellName(6, row)
		pics, err := f.GetPictures(AnswersSheet, cell)
		require.NoError(t, err)
		require.Len(t, pics, 1, cell)
		assert.Equal(t, q.SolutionImage, pics[0].File)
	}
}

func TestWriteWorksheet_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteWorksheet(&buf, nil), ErrNoQuestions)

	broken := []*models.QuestionPayload{{ID: "x"}}
	assert.Error(t, WriteWorksheet(&buf, broken))
}

func TestLayerSummary(t *testing.T) {
	r := 0.18
	k := 0.72
	got := layerSummary([]models.ResolvedLayer{
		{Kind: models.LayerSimple, Material: "brick", ThicknessM: 0.102, Conductivity: &k},
		{Kind: models.LayerSimple, Material: "air_cavity", FixedResistance: &r},
	})
	assert.Equal(t, "Brick 102.0 mm | Air Cavity (R 0.18)", got)
}
