package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/cardgrade/models"
)

// ErrEmptyDataset is returned when the dataset holds no valid record.
var ErrEmptyDataset = errors.New("dataset: no records")

// Sampler reads the dataset file and picks random records. The parsed dataset is cached
// for the configured TTL so a regenerated file is picked up without a restart.
type Sampler struct {
	path  string
	cache *expirable.LRU[string, []*models.CardRecord]
	gauge prometheus.Gauge
	intn  func(n int) int
}

// NewSampler returns a sampler over path. A ttl of zero re-reads the file on every call.
func NewSampler(path string, ttl time.Duration) *Sampler {
	s := &Sampler{path: path, intn: rand.IntN}
	if ttl > 0 {
		s.cache = expirable.NewLRU[string, []*models.CardRecord](1, nil, ttl)
	}
	return s
}

// WithGauge reports the dataset size on every load.
func (s *Sampler) WithGauge(g prometheus.Gauge) *Sampler {
	s.gauge = g
	return s
}

// Path returns the dataset file.
func (s *Sampler) Path() string { return s.path }

// Records returns every valid record in the dataset.
func (s *Sampler) Records() ([]*models.CardRecord, error) {
	if s.cache != nil {
		if records, ok := s.cache.Get(s.path); ok {
			return records, nil
		}
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, _, err := Decode(f)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(s.path, records)
	}
	if s.gauge != nil {
		s.gauge.Set(float64(len(records)))
	}
	return records, nil
}

// Random returns one record chosen uniformly.
func (s *Sampler) Random() (*models.CardRecord, error) {
	records, err := s.Records()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}
	return records[s.intn(len(records))], nil
}
