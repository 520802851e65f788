package view

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"iocviewer/internal/threat"
)

var sampleSet = []threat.Indicator{
	{Address: "10.0.0.1", Score: 9},
	{Address: "192.168.10.4", Score: 2},
	{Address: "2001:DB8::a", Score: 7},
	{Address: "10.0.0.12", Score: 4},
	{Address: "2001:db8::b", Score: 10},
}

func isSubsequence(sub, of []threat.Indicator) bool {
	j := 0
	for _, ioc := range of {
		if j < len(sub) && sub[j] == ioc {
			j++
		}
	}
	return j == len(sub)
}

func TestFilterEmptyQueryIsIdentity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sampleSet, Filter(sampleSet, ""))
	assert.Empty(t, Filter(nil, ""))
}

func TestFilterMatchesSubstringInOrder(t *testing.T) {
	t.Parallel()

	got := Filter(sampleSet, "10.0")
	assert.Equal(t, []threat.Indicator{
		{Address: "10.0.0.1", Score: 9},
		{Address: "10.0.0.12", Score: 4},
	}, got)

	assert.Equal(t, []threat.Indicator{{Address: "10.0.0.1", Score: 9}, {Address: "10.0.0.12", Score: 4}},
		Filter(sampleSet, "10.0.0.1"))
	assert.Empty(t, Filter(sampleSet, "172.16"))
}

func TestFilterProperties(t *testing.T) {
	t.Parallel()

	for _, q := range []string{"", "10", "db8", "DB8::", "::a", ".", " ", "nope"} {
		got := Filter(sampleSet, q)

		assert.True(t, isSubsequence(got, sampleSet), "query %q: not an ordered subsequence", q)
		assert.Equal(t, got, Filter(got, q), "query %q: not idempotent", q)
		assert.Equal(t, got, Filter(sampleSet, strings.ToUpper(q)), "query %q: upper case differs", q)
		assert.Equal(t, got, Filter(sampleSet, strings.ToLower(q)), "query %q: lower case differs", q)
	}
}

func TestFilterDoesNotTrimWhitespace(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Filter(sampleSet, " "))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	full := append([]threat.Indicator(nil), sampleSet...)
	_ = Filter(full, "db8")
	assert.Equal(t, sampleSet, full)
}
