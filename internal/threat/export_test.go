package threat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	batch := newBatch("AbuseIPDB Ipsum Feed", Indicator{"1.2.3.4", 9}, Indicator{"5.6.7.8", 2.5})
	require.NoError(t, WriteJSON(&buf, batch))

	assert.JSONEq(t, `{
		"fetched_at": "2026-01-02T03:04:05Z",
		"ioc_type": "IPv4",
		"source": "AbuseIPDB Ipsum Feed",
		"data": [{"ip": "1.2.3.4", "score": 9}, {"ip": "5.6.7.8", "score": 2.5}]
	}`, buf.String())
	assert.Contains(t, buf.String(), "\n    \"fetched_at\"")
}

func TestWriteJSONEmptyBatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, newBatch("empty")))
	assert.Contains(t, buf.String(), `"data": []`)
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	batch := newBatch("abuse", Indicator{"1.2.3.4", 9}, Indicator{"5.6.7.8", 2.5})
	require.NoError(t, WriteCSV(&buf, batch))
	assert.Equal(t, "ip,score\n1.2.3.4,9\n5.6.7.8,2.5\n", buf.String())
}
