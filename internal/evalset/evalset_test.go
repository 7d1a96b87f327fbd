package evalset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeSource(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func build(t *testing.T, source string) (model.EvaluationSet, error) {
	t.Helper()
	return NewBuilder(Options{Source: source, Sheet: "Eval Set", DefaultTier: model.Tier0}, nil).Build(context.Background())
}

func TestBuild_YAMLList(t *testing.T) {
	path := writeSource(t, "eval.yaml", `
- vendor: "The Bar!"
  tier: 0
- vendor: Carbone
  tier: 50%
- Soho House
- vendor: "the bar"
  tier: entertainment
`)

	set, err := build(t, path)
	require.NoError(t, err)

	assert.Equal(t, []model.EvaluationEntry{
		{Vendor: "Carbone", Key: "carbone", Tier: model.Tier50},
		{Vendor: "Soho House", Key: "soho house", Tier: model.Tier0},
		{Vendor: "The Bar!", Key: "the bar", Tier: model.Tier0},
	}, set.Entries)
}

func TestBuild_YAMLMapping(t *testing.T) {
	path := writeSource(t, "eval.yml", `
Joe's Bar: 0
Team Offsite Catering: 100
"Dead Rabbit":
`)

	set, err := build(t, path)
	require.NoError(t, err)
	require.Len(t, set.Entries, 3)
	assert.Equal(t, "dead rabbit", set.Entries[0].Key)
	assert.Equal(t, model.Tier0, set.Entries[0].Tier)
	assert.Equal(t, "joes bar", set.Entries[1].Key)
	assert.Equal(t, model.Tier100, set.Entries[2].Tier)
}

func TestBuild_ConflictingDuplicate(t *testing.T) {
	path := writeSource(t, "eval.yaml", "- {vendor: \"The Bar!\", tier: 0}\n- {vendor: \"the bar\", tier: 50}\n")

	_, err := build(t, path)
	assert.ErrorIs(t, err, common.ErrMalformedEvalSet)
}

func TestBuild_CSV(t *testing.T) {
	path := writeSource(t, "eval.csv", "Vendor,Tier\nJoe's Bar,0\n,\nSweetgreen,0.5\n")

	set, err := build(t, path)
	require.NoError(t, err)
	require.Len(t, set.Entries, 2)
	assert.Equal(t, "joes bar", set.Entries[0].Key)
	assert.Equal(t, model.Tier50, set.Entries[1].Tier)
}

func TestBuild_CSVWithoutHeader(t *testing.T) {
	path := writeSource(t, "eval.csv", "Joe's Bar\nDead Rabbit\n")

	set, err := build(t, path)
	require.NoError(t, err)
	require.Len(t, set.Entries, 2)
	assert.Equal(t, "dead rabbit", set.Entries[0].Key)
}

func TestBuild_XLSX(t *testing.T) {
	f := excelize.NewFile()
	_, err := f.NewSheet("Eval Set")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Eval Set", "A1", &[]any{"Vendor"}))
	require.NoError(t, f.SetSheetRow("Eval Set", "A2", &[]any{"Dead Rabbit"}))
	require.NoError(t, f.SetSheetRow("Eval Set", "A3", &[]any{"Carbone", "50"}))
	path := filepath.Join(t.TempDir(), "eval.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	set, err := build(t, path)
	require.NoError(t, err)
	assert.Equal(t, []model.EvaluationEntry{
		{Vendor: "Carbone", Key: "carbone", Tier: model.Tier50},
		{Vendor: "Dead Rabbit", Key: "dead rabbit", Tier: model.Tier0},
	}, set.Entries)
}

func TestBuild_Errors(t *testing.T) {
	_, err := build(t, filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, common.ErrMissingInput)

	_, err = build(t, writeSource(t, "empty.yaml", "[]\n"))
	assert.ErrorIs(t, err, common.ErrMalformedEvalSet)

	_, err = build(t, writeSource(t, "bad.csv", "Vendor,Tier\nJoe's Bar,75\n"))
	assert.ErrorIs(t, err, common.ErrMalformedEvalSet)

	_, err = build(t, writeSource(t, "scalar.yaml", "just a string\n"))
	assert.ErrorIs(t, err, common.ErrMalformedEvalSet)
}

func TestBuild_Deterministic(t *testing.T) {
	path := writeSource(t, "eval.yaml", "- Zeta Lounge\n- Alpha Bar\n- Midtown Pub\n")

	first, err := build(t, path)
	require.NoError(t, err)
	second, err := build(t, path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
