package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelscan/pkg/models"
)

func TestExtractFindsEachGrammar(t *testing.T) {
	text := "Beacon to 45.77.12.9 from aa:bb:cc:dd:ee:ff, exploit CVE-2021-44228 via T1190 and T1059.001 (TA0001). " +
		"Contact soc@example.org or see https://example.org/report?id=1. " +
		"MD5 44d88612fea8a8f36de82e1278abb02f"

	got := Extract(text)
	byType := make(map[string]string, len(got))
	for _, c := range got {
		byType[c.Type+"|"+c.Value] = c.Name
	}

	assert.Contains(t, byType, TypeIPv4+"|45.77.12.9")
	assert.Contains(t, byType, TypeMAC+"|aa:bb:cc:dd:ee:ff")
	assert.Contains(t, byType, TypeCVE+"|CVE-2021-44228")
	assert.Contains(t, byType, TypeAttackPattern+"|T1190")
	assert.Contains(t, byType, TypeAttackPattern+"|T1059.001")
	assert.Contains(t, byType, TypeTactic+"|TA0001")
	assert.Contains(t, byType, TypeEmail+"|soc@example.org")
	assert.Contains(t, byType, TypeURL+"|https://example.org/report?id=1")
	assert.Contains(t, byType, TypeMD5+"|44d88612fea8a8f36de82e1278abb02f")
	assert.Len(t, got, 9)
}

func TestExtractDeduplicatesAndKeepsFirstOccurrenceOrder(t *testing.T) {
	got := Extract("t1566 then 10.0.0.1 then T1566 then 10.0.0.1")
	require.Len(t, got, 2)
	assert.Equal(t, "T1566", got[0].Value)
	assert.Equal(t, models.KindMitreID, got[0].Kind)
	assert.Equal(t, "10.0.0.1", got[1].Value)
	assert.Equal(t, models.KindIP, got[1].Kind)
}

func TestExtractSkipsInvalidAndNestedTokens(t *testing.T) {
	got := Extract("bad 999.1.1.1 and mixed aa:bb-cc:dd:ee:ff and http://10.1.2.3/payload")
	require.Len(t, got, 1)
	assert.Equal(t, TypeURL, got[0].Type)
	assert.Equal(t, "http://10.1.2.3/payload", got[0].Value)
}

func TestExtractEmpty(t *testing.T) {
	assert.Nil(t, Extract("  "))
}
