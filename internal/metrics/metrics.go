// Package metrics renders test results in the Prometheus text exposition
// format, both to textfile-collector files and to a live collector.
package metrics

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const (
	ResultMetric    = "test_result"
	TimestampMetric = "test_last_run_timestamp"

	resultHelp    = "Outcome of the last run of a test (1 passed, 0 failed)."
	timestampHelp = "Unix time of the last run of a test."
)

// Record is one gauge sample.
type Record struct {
	Name   string
	Help   string
	Labels map[string]string
	Value  float64
}

// ResultRecords returns the two samples exported for one test run.
func ResultRecords(name, browser, suite string, passed bool, at time.Time) []Record {
	labels := map[string]string{"name": name, "suite": suite, "browser": browser}
	value := 0.0
	if passed {
		value = 1
	}
	return []Record{
		{Name: ResultMetric, Help: resultHelp, Labels: labels, Value: value},
		{Name: TimestampMetric, Help: timestampHelp, Labels: labels, Value: float64(at.Unix())},
	}
}

// FileName is the textfile-collector path for a suite file:
// <dir>/test_results-<base>.prom.
func FileName(suiteBase, dir string) string {
	return filepath.Join(dir, fmt.Sprintf("test_results-%s.prom", suiteBase))
}

// Encode writes the sample lines of records in text exposition format, one
// family after another in the order records first name them. HELP and TYPE
// comments are omitted so successive appends to one file concatenate cleanly.
func Encode(w io.Writer, records []Record) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(&staticCollector{records: records}); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather records: %w", err)
	}

	order := make(map[string]int)
	for _, r := range records {
		if _, ok := order[r.Name]; !ok {
			order[r.Name] = len(order)
		}
	}
	sort.SliceStable(families, func(i, j int) bool {
		return order[families[i].GetName()] < order[families[j].GetName()]
	})

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}

	var out bytes.Buffer
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		out.Write(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return err
	}
	_, err = w.Write(out.Bytes())
	return err
}

// staticCollector exports a fixed set of records. It is unchecked: Describe
// sends nothing, so records may carry any label set.
type staticCollector struct {
	records []Record
}

func (c *staticCollector) Describe(chan<- *prometheus.Desc) {}

func (c *staticCollector) Collect(ch chan<- prometheus.Metric) {
	collectRecords(ch, c.records)
}

func collectRecords(ch chan<- prometheus.Metric, records []Record) {
	for _, r := range records {
		names := make([]string, 0, len(r.Labels))
		for k := range r.Labels {
			names = append(names, k)
		}
		sort.Strings(names)
		values := make([]string, len(names))
		for i, k := range names {
			values[i] = r.Labels[k]
		}

		desc := prometheus.NewDesc(r.Name, r.Help, names, nil)
		m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, r.Value, values...)
		if err != nil {
			ch <- prometheus.NewInvalidMetric(desc, err)
			continue
		}
		ch <- m
	}
}

// Collector serves the most recent sample per series, for scraping in serve
// mode.
type Collector struct {
	mu     sync.RWMutex
	latest map[string]Record
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector() *Collector {
	return &Collector{latest: make(map[string]Record)}
}

// Update replaces the stored samples for the series in records.
func (c *Collector) Update(records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		c.latest[seriesKey(r)] = r
	}
}

// Records returns the stored samples sorted by series.
func (c *Collector) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.latest))
	for k := range c.latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.latest[k])
	}
	return out
}

func (c *Collector) Describe(chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	collectRecords(ch, c.Records())
}

func seriesKey(r Record) string {
	names := make([]string, 0, len(r.Labels))
	for k := range r.Labels {
		names = append(names, k)
	}
	sort.Strings(names)
	key := r.Name
	for _, k := range names {
		key += "\xff" + k + "=" + r.Labels[k]
	}
	return key
}
