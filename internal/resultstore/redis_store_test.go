package resultstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	s := &RedisStore{prefix: DefaultKeyPrefix}
	assert.Equal(t, "intelscan:results:page:https://example.com/a", s.pageKey(" https://example.com/a "))
	assert.Equal(t, "intelscan:results:recent", s.recentKey())
}

func TestDecodeResult(t *testing.T) {
	r, err := decodeResult([]byte(`{"scan_id":"s1","page_url":"https://a","seq":4,"entities":[{"id":"x","type":"Malware","name":"Emotet","found":true,"platform_matches":[],"matched_strings":["Emotet"]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "s1", r.ScanID)
	assert.EqualValues(t, 4, r.Sequence)
	require.Len(t, r.Entities, 1)
	assert.Equal(t, []string{"Emotet"}, r.Entities[0].MatchedStrings)

	_, err = decodeResult([]byte(`{`))
	assert.Error(t, err)
}

func TestCloseNilStore(t *testing.T) {
	var s *RedisStore
	assert.NoError(t, s.Close())
}
