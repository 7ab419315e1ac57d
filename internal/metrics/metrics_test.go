package metrics

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tsString(at time.Time) string {
	return strconv.FormatFloat(float64(at.Unix()), 'g', -1, 64)
}

func TestEncode_ResultRecords(t *testing.T) {
	at := time.Unix(1700000000, 0)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ResultRecords("t1", "Chromium", "default", true, at)))

	want := `test_result{browser="Chromium",name="t1",suite="default"} 1` + "\n" +
		`test_last_run_timestamp{browser="Chromium",name="t1",suite="default"} ` + tsString(at) + "\n"
	assert.Equal(t, want, buf.String())
}

func TestEncode_FailedAndEscaping(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ResultRecords(`say "hi"`, "Firefox", "smoke", false, time.Unix(0, 0))))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `test_result{browser="Firefox",name="say \"hi\"",suite="smoke"} 0`, lines[0])
}

func TestEncode_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestReporter_TruncateThenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "test_results-default.prom")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale 1\n"), 0o644))

	r := NewReporter(path, nil)
	at := time.Unix(1700000000, 0)
	require.NoError(t, r.Write(ResultRecords("a", "Chromium", "default", true, at), ModeTruncate))
	require.NoError(t, r.Write(ResultRecords("b", "Chromium", "default", false, at), ModeAppend))
	require.NoError(t, r.Write(ResultRecords("c", "Chromium", "default", true, at), ModeAppend))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	ts := tsString(at)
	assert.Equal(t, []string{
		`test_result{browser="Chromium",name="a",suite="default"} 1`,
		`test_last_run_timestamp{browser="Chromium",name="a",suite="default"} ` + ts,
		`test_result{browser="Chromium",name="b",suite="default"} 0`,
		`test_last_run_timestamp{browser="Chromium",name="b",suite="default"} ` + ts,
		`test_result{browser="Chromium",name="c",suite="default"} 1`,
		`test_last_run_timestamp{browser="Chromium",name="c",suite="default"} ` + ts,
	}, lines)
}

func TestReporter_TruncatesOnlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.prom")
	r := NewReporter(path, nil)
	at := time.Unix(1, 0)

	require.NoError(t, r.Write(ResultRecords("a", "Chromium", "s", true, at), ModeTruncate))
	require.NoError(t, r.Write(ResultRecords("b", "Chromium", "s", true, at), ModeTruncate))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(data), "\n"))
}

func TestReporter_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.prom")
	require.NoError(t, os.WriteFile(path, []byte("old 1\n"), 0o644))

	r := NewReporter(path, nil)
	require.NoError(t, r.Clear())
	require.NoError(t, r.Write(ResultRecords("a", "Chromium", "s", true, time.Unix(1, 0)), ModeTruncate))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "old")
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestReporter_ConcurrentWritesStayWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.prom")
	r := NewReporter(path, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "t" + strconv.Itoa(i)
			assert.NoError(t, r.Write(ResultRecords(name, "Chromium", "s", true, time.Unix(1, 0)), ModeAppend))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 40)
	for i := 0; i < len(lines); i += 2 {
		assert.True(t, strings.HasPrefix(lines[i], "test_result{"), lines[i])
		assert.True(t, strings.HasPrefix(lines[i+1], "test_last_run_timestamp{"), lines[i+1])
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, filepath.Join("metrics", "test_results-config.prom"), FileName("config", "metrics"))
}

func TestCollector_KeepsLatest(t *testing.T) {
	c := NewCollector()
	c.Update(ResultRecords("a", "Chromium", "s", false, time.Unix(1, 0)))
	c.Update(ResultRecords("a", "Chromium", "s", true, time.Unix(2, 0)))
	c.Update(ResultRecords("b", "Firefox", "s", true, time.Unix(2, 0)))

	assert.Len(t, c.Records(), 4)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 2)

	// Gather sorts families by name.
	results := families[1]
	assert.Equal(t, ResultMetric, results.GetName())
	require.Len(t, results.GetMetric(), 2)
	for _, m := range results.GetMetric() {
		assert.Equal(t, 1.0, m.GetGauge().GetValue())
	}
	assert.Equal(t, "a", results.GetMetric()[0].GetLabel()[1].GetValue())
}
