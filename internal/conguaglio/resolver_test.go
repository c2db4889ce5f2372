package conguaglio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollettaetica/fatture-cli/internal/model"
)

func record(pod, month, date string) model.Record {
	return model.Record{
		model.FieldFornitore:     {model.ParseValue("Enel Energia")},
		model.FieldNumeroFattura: {model.ParseValue("F-" + date)},
		model.FieldMeseFattura:   {model.ParseValue(month)},
		model.FieldDataFattura:   {model.ParseValue(date)},
		model.FieldCodicePOD:     {model.ParseValue(pod)},
	}
}

func entry(filename string, recs ...model.Record) model.FileResult {
	return model.FileResult{
		Filename: filename,
		Layouts:  []string{"/layouts/enel.bls"},
		Values:   recs,
	}
}

func key(fr model.FileResult) (string, string, string) {
	rec := fr.Values[0]
	pod, _ := rec.First(model.FieldCodicePOD)
	month, _ := rec.First(model.FieldMeseFattura)
	date, _ := rec.First(model.FieldDataFattura)
	return pod.String(), month.String(), date.String()
}

func TestResolve_FlagsSupersededInvoice(t *testing.T) {
	out, err := Resolve([]model.FileResult{
		entry("/in/b.pdf", record("IT001E00000001", "2024-03", "2024-04-20")),
		entry("/in/a.pdf", record("IT001E00000001", "2024-03", "2024-04-05")),
		entry("/in/c.pdf", record("IT001E00000001", "2024-04", "2024-05-02")),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Sorted: the 04-05 invoice comes first and is superseded by the
	// 04-20 one for the same pod and month; the other month is untouched.
	_, _, d0 := key(out[0])
	assert.Equal(t, "2024-04-05", d0)
	assert.True(t, out[0].Conguaglio)
	assert.False(t, out[1].Conguaglio)
	assert.False(t, out[2].Conguaglio)
}

func TestResolve_SortsByPodMonthDate(t *testing.T) {
	out, err := Resolve([]model.FileResult{
		entry("/in/1.pdf", record("IT002E00000002", "2024-01", "2024-02-01")),
		entry("/in/2.pdf", record("IT001E00000001", "2024-02", "2024-03-01")),
		entry("/in/3.pdf", record("IT001E00000001", "2024-01", "2024-02-15")),
		entry("/in/4.pdf", record("IT001E00000001", "2024-01", "2024-02-01")),
	})
	require.NoError(t, err)
	require.Len(t, out, 4)

	var got [][3]string
	for _, fr := range out {
		pod, month, date := key(fr)
		got = append(got, [3]string{pod, month, date})
	}
	assert.Equal(t, [][3]string{
		{"IT001E00000001", "2024-01", "2024-02-01"},
		{"IT001E00000001", "2024-01", "2024-02-15"},
		{"IT001E00000001", "2024-02", "2024-03-01"},
		{"IT002E00000002", "2024-01", "2024-02-01"},
	}, got)
}

func TestResolve_PairwiseChainOfThree(t *testing.T) {
	// Three invoices for one (pod, month): the scan is strictly pairwise,
	// so the first two are each flagged by their direct successor and the
	// newest stays unflagged.
	out, err := Resolve([]model.FileResult{
		entry("/in/a.pdf", record("IT001E00000001", "2024-03", "2024-04-05")),
		entry("/in/b.pdf", record("IT001E00000001", "2024-03", "2024-04-20")),
		entry("/in/c.pdf", record("IT001E00000001", "2024-03", "2024-05-10")),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.True(t, out[0].Conguaglio)
	assert.True(t, out[1].Conguaglio)
	assert.False(t, out[2].Conguaglio)
}

func TestResolve_SameDateNotFlagged(t *testing.T) {
	// Strictly-later only: two invoices issued the same day for the same
	// pod and month do not supersede each other.
	out, err := Resolve([]model.FileResult{
		entry("/in/a.pdf", record("IT001E00000001", "2024-03", "2024-04-05")),
		entry("/in/b.pdf", record("IT001E00000001", "2024-03", "2024-04-05")),
	})
	require.NoError(t, err)
	assert.False(t, out[0].Conguaglio)
	assert.False(t, out[1].Conguaglio)
}

func TestResolve_ExplodesMultiRecordFiles(t *testing.T) {
	out, err := Resolve([]model.FileResult{
		entry("/in/multi.pdf",
			record("IT001E00000001", "2024-01", "2024-02-01"),
			record("IT001E00000001", "2024-02", "2024-03-01"),
		),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, fr := range out {
		assert.Equal(t, "/in/multi.pdf", fr.Filename)
		assert.Equal(t, []string{"/layouts/enel.bls"}, fr.Layouts)
		assert.Len(t, fr.Values, 1)
	}
}

func TestResolve_ErrorsAppendedAfterSorted(t *testing.T) {
	failed := model.FileResult{
		Filename: "/in/bad.pdf",
		Error:    "Nessun layout compatibile",
		Errcode:  3,
	}
	out, err := Resolve([]model.FileResult{
		failed,
		entry("/in/z.pdf", record("IT009E00000009", "2024-03", "2024-04-05")),
		entry("/in/a.pdf", record("IT001E00000001", "2024-03", "2024-04-05")),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "/in/a.pdf", out[0].Filename)
	assert.Equal(t, "/in/z.pdf", out[1].Filename)

	last := out[2]
	assert.Equal(t, "/in/bad.pdf", last.Filename)
	assert.Equal(t, "Nessun layout compatibile", last.Error)
	assert.NotNil(t, last.Values)
	assert.Empty(t, last.Values)
}

func TestResolve_IneligibleRecordShuntedUnflagged(t *testing.T) {
	incomplete := record("IT001E00000001", "2024-03", "2024-04-05")
	delete(incomplete, model.FieldDataFattura)

	out, err := Resolve([]model.FileResult{
		entry("/in/a.pdf", incomplete),
		entry("/in/b.pdf", record("IT001E00000001", "2024-03", "2024-04-20")),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	// The eligible record sorts first; the incomplete one trails and is
	// never flagged or compared.
	assert.Equal(t, "/in/b.pdf", out[0].Filename)
	assert.Equal(t, "/in/a.pdf", out[1].Filename)
	assert.False(t, out[0].Conguaglio)
	assert.False(t, out[1].Conguaglio)
}

func TestResolve_AllRecordsFilteredFileKept(t *testing.T) {
	filtered := model.FileResult{
		Filename: "/in/spoglio.pdf",
		Layouts:  []string{"/layouts/controllo.bls"},
		Values:   []model.Record{},
		Notes:    []string{"dati mancanti: data_fattura"},
	}
	out, err := Resolve([]model.FileResult{
		filtered,
		entry("/in/a.pdf", record("IT001E00000001", "2024-03", "2024-04-05")),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "/in/a.pdf", out[0].Filename)

	kept := out[1]
	assert.Equal(t, "/in/spoglio.pdf", kept.Filename)
	assert.Equal(t, []string{"dati mancanti: data_fattura"}, kept.Notes)
	assert.NotNil(t, kept.Values)
	assert.Empty(t, kept.Values)
	assert.False(t, kept.Conguaglio)
}

func TestResolve_MalformedDateIsFatal(t *testing.T) {
	bad := record("IT001E00000001", "2024-03", "2024-04-05")
	bad[model.FieldDataFattura] = []model.Value{model.ParseValue("05/04/2024")}

	_, err := Resolve([]model.FileResult{entry("/in/a.pdf", bad)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed data_fattura")
}

func TestResolve_ClearsStaleFlags(t *testing.T) {
	stale := entry("/in/a.pdf", record("IT001E00000001", "2024-03", "2024-04-05"))
	stale.Conguaglio = true

	out, err := Resolve([]model.FileResult{stale})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].Conguaglio)
}
