package delivery

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Snapshot is a point-in-time copy of a Tracker's counters.
type Snapshot struct {
	TotalSent   int
	Successful  int
	Failed      int
	Bounces     int
	SpamReports int

	// DeliveryTimes holds the completion time of every successful send, oldest first.
	DeliveryTimes []time.Time

	// Failures maps an error description to its number of occurrences.
	Failures map[string]int
}

// snapshotDocument is the persisted form. Delivery times are epoch seconds.
type snapshotDocument struct {
	TotalSent     int            `json:"total_sent"`
	Successful    int            `json:"successful"`
	Failed        int            `json:"failed"`
	Bounces       int            `json:"bounces"`
	SpamReports   int            `json:"spam_reports"`
	DeliveryTimes []float64      `json:"delivery_times"`
	Failures      map[string]int `json:"failures"`
}

// MarshalJSON encodes the snapshot in the persisted metrics format.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	doc := snapshotDocument{
		TotalSent:     s.TotalSent,
		Successful:    s.Successful,
		Failed:        s.Failed,
		Bounces:       s.Bounces,
		SpamReports:   s.SpamReports,
		DeliveryTimes: make([]float64, len(s.DeliveryTimes)),
		Failures:      s.Failures,
	}
	for i, t := range s.DeliveryTimes {
		doc.DeliveryTimes[i] = epochSeconds(t)
	}
	if doc.Failures == nil {
		doc.Failures = map[string]int{}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the persisted metrics format.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*s = Snapshot{
		TotalSent:     doc.TotalSent,
		Successful:    doc.Successful,
		Failed:        doc.Failed,
		Bounces:       doc.Bounces,
		SpamReports:   doc.SpamReports,
		DeliveryTimes: make([]time.Time, len(doc.DeliveryTimes)),
		Failures:      doc.Failures,
	}
	for i, f := range doc.DeliveryTimes {
		s.DeliveryTimes[i] = fromEpochSeconds(f)
	}
	if s.Failures == nil {
		s.Failures = map[string]int{}
	}
	return nil
}

// ReadSnapshot decodes a persisted snapshot from r.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode delivery snapshot: %w", err)
	}
	return s, nil
}

// ReadFile decodes a snapshot previously written by a FileSink.
func ReadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()

	return ReadSnapshot(f)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func fromEpochSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9)))
}
