package resultjson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelscan/pkg/models"
)

func TestWriterAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.jsonl")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteResults([]*models.ScanResult{
		{ScanID: "s1", Entities: []models.ScanResultEntity{{ID: "malware-emotet", Type: "Malware", Name: "Emotet"}}},
		nil,
	}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteResults([]*models.ScanResult{{ScanID: "s2"}}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r models.ScanResult
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		ids = append(ids, r.ScanID)
	}
	assert.Equal(t, []string{"s1", "s2"}, ids)
}
