package dataset

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdd/internal/fdderr"
	"fdd/internal/models"
)

func TestRead(t *testing.T) {
	input := `id,y0,x1,x0,label
a,1.5,0.2,0.1,left
b,2.5,0.4,0.3,right
c,-1,0.6,0.5,left
`
	obs, err := Read(strings.NewReader(input))
	require.NoError(t, err)

	want := models.Observations{
		Y: [][]float64{{1.5}, {2.5}, {-1}},
		X: [][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}},
	}
	if diff := cmp.Diff(want, obs); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}
}

func TestReadVectorOutcome(t *testing.T) {
	input := "x0, y0, y1\n0, 1, 2\n1, 3, 4\n"
	obs, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, obs.Channels())
	assert.Equal(t, 1, obs.Dims())
	assert.Equal(t, []float64{3, 4}, obs.Y[1])
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no coordinates", "y0\n1\n"},
		{"no outcome", "x0\n1\n"},
		{"gap in columns", "x0,x2,y0\n1,2,3\n"},
		{"duplicate column", "x0,X0,y0\n1,2,3\n"},
		{"not a number", "x0,y0\n1,abc\n"},
		{"ragged row", "x0,y0\n1,2\n3\n"},
		{"header only", "x0,y0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, fdderr.ErrConfiguration)
			assert.Equal(t, fdderr.StageInput, fdderr.StageOf(err))
		})
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, fdderr.ErrConfiguration)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteJumps(t *testing.T) {
	jumps := models.JumpRecords{
		{Location: []float64{0.5, 0.25}, From: 1, To: 1.125, Size: 0.125},
		{Location: []float64{0.75, 0.5}, From: 2, To: 1.5, Size: -0.5},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteJumps(&buf, jumps))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	want := [][]string{
		{"x0", "x1", "from", "to", "size"},
		{"0.5", "0.25", "1", "1.125", "0.125"},
		{"0.75", "0.5", "2", "1.5", "-0.5"},
	}
	assert.Equal(t, want, rows)
}

func TestWriteJumpsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJumps(&buf, nil))
	assert.Equal(t, "from,to,size\n", buf.String())
}

func TestWriteJumpsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jumps.csv")
	jumps := models.JumpRecords{{Location: []float64{1}, From: 0, To: 2, Size: 2}}
	require.NoError(t, WriteJumpsFile(path, jumps))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x0,from,to,size\n1,0,2,2\n", string(data))
}
