package ingest

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eligibility-report-api/internal/models"
)

func TestCSVSourceReadsRowsByHeader(t *testing.T) {
	input := "\ufeffLearner Code, Learner Name,BS-CIT Classroom Internal Marks\n" +
		"L1,Asha,10/20\n" +
		"L2,\"Ravi, K\"\n" +
		"L3,Meena,12/20,extra\n"

	src, err := NewCSVSource(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"Learner Code", "Learner Name", "BS-CIT Classroom Internal Marks"}, src.Header())

	row, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, models.Row{"Learner Code": "L1", "Learner Name": "Asha", "BS-CIT Classroom Internal Marks": "10/20"}, row)

	row, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, "Ravi, K", row["Learner Name"])
	_, present := row["BS-CIT Classroom Internal Marks"]
	assert.False(t, present)

	row, err = src.Next()
	require.NoError(t, err)
	assert.Len(t, row, 3)

	_, err = src.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestCSVSourceEmptyInput(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader(""))
	assert.Error(t, err)
}

func TestCSVSourceToleratesStrayQuotes(t *testing.T) {
	input := "Learner Code,Learner Name,BS-CIT Lab Internal Marks\n" +
		"L1,Asha \"Ash\" Rao,40/60\n" +
		"L2,Ravi,\"45\n"

	src, err := NewCSVSource(strings.NewReader(input))
	require.NoError(t, err)

	row, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, `Asha "Ash" Rao`, row["Learner Name"])
	assert.Equal(t, "40/60", row["BS-CIT Lab Internal Marks"])

	row, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, "L2", row["Learner Code"])

	_, err = src.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestCSVSourceSurfacesReadErrors(t *testing.T) {
	failure := errors.New("connection reset")
	input := io.MultiReader(strings.NewReader("Learner Code\nL1\n"), iotest.ErrReader(failure))

	src, err := NewCSVSource(input)
	require.NoError(t, err)

	_, err = src.Next()
	require.NoError(t, err)

	_, err = src.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure))
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]models.Row{{"a": "1"}})
	row, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", row["a"])
	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}
