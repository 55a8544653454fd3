package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelscan/pkg/models"
)

func TestEscapeRegexRoundTrip(t *testing.T) {
	name := "a.b*c?d+e"
	text := "x a.b*c?d+e y A.B*C?D+E z axb*c?d+e aab*c?d+e"

	p, err := CompilePattern(name)
	require.NoError(t, err)

	got := p.FindAll(text)
	require.Len(t, got, 2)
	assert.Equal(t, "a.b*c?d+e", text[got[0].Start:got[0].End])
	assert.Equal(t, "A.B*C?D+E", text[got[1].Start:got[1].End])

	assert.Equal(t, `a\.b\*c\?d\+e`, EscapeRegex(name))
}

func TestCompilePatternIPDoesNotMatchInsideLongerAddress(t *testing.T) {
	p, err := CompilePattern("192.168.1.1")
	require.NoError(t, err)
	assert.Equal(t, models.KindIP, p.Kind())
	assert.False(t, p.NeedsBoundaryCheck())

	assert.Empty(t, p.FindAll("host 192.168.1.100 is up"))
	assert.Empty(t, p.FindAll("host 10.192.168.1.1 is up"))
	assert.Len(t, p.FindAll("host 192.168.1.1 is up"), 1)
	assert.Len(t, p.FindAll("ends with 192.168.1.1."), 1)
}

func TestCompilePatternMACAnchors(t *testing.T) {
	p, err := CompilePattern("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)

	assert.Len(t, p.FindAll("mac AA:BB:CC:DD:EE:FF seen"), 1)
	assert.Empty(t, p.FindAll("mac aa:bb:cc:dd:ee:ff:01 seen"))
	assert.Empty(t, p.FindAll("mac 01:aa:bb:cc:dd:ee:ff seen"))
}

func TestCompilePatternParentMitreIDSkipsSubTechnique(t *testing.T) {
	p, err := CompilePattern("T1059")
	require.NoError(t, err)

	assert.Empty(t, p.FindAll("uses T1059.001 for execution"))
	assert.Len(t, p.FindAll("uses T1059. Then"), 1)
	assert.Len(t, p.FindAll("uses t1059 and T1059"), 2)
}

func TestCompilePatternRejectsEmpty(t *testing.T) {
	_, err := CompilePattern("   ")
	assert.Error(t, err)
}

func TestCompilePatternNonWordEdges(t *testing.T) {
	p, err := CompilePattern("C++")
	require.NoError(t, err)
	assert.Len(t, p.FindAll("written in C++ mostly"), 1)
}

func TestCompilePatternFindsSelfOverlappingOccurrences(t *testing.T) {
	p, err := CompilePattern("Bad Bad")
	require.NoError(t, err)

	got := p.FindAll("Bad Bad Bad")
	require.Len(t, got, 2)
	assert.Equal(t, models.CharRange{Start: 0, End: 7}, got[0])
	assert.Equal(t, models.CharRange{Start: 4, End: 11}, got[1])

	assert.Empty(t, p.FindAll("xBad Bad"), "word edge before the literal is enforced")
}
