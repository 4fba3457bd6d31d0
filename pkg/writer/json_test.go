package writer

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONWriterCompact(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter[payload]()

	require.NoError(t, w.Write(payload{Name: "leaks", Count: 2}, &buf))
	assert.Equal(t, "{\"name\":\"leaks\",\"count\":2}\n", buf.String())
}

func TestJSONWriterPretty(t *testing.T) {
	var buf bytes.Buffer
	w := NewPrettyJSONWriter[payload]()

	require.NoError(t, w.Write(payload{Name: "leaks", Count: 2}, &buf))
	assert.Contains(t, buf.String(), "  \"name\": \"leaks\"")
}

func TestJSONWriterToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	w := NewJSONWriter[payload]()
	require.NoError(t, w.WriteToFile(payload{Name: "report", Count: 1}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got payload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "report", got.Name)
}

func TestGzipJSONWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewGzipJSONWriter[payload]()
	require.NoError(t, w.Write(payload{Name: "gz", Count: 7}, &buf))

	gz, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)

	var got payload
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 7, got.Count)
}
