package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/kafka"
)

type EventType string

const (
	EventSearch       EventType = "search"
	EventCorpusReload EventType = "corpus_reload"
)

// SearchEvent describes one answered query. ResultIDs holds the returned hotel
// ids in rank order.
type SearchEvent struct {
	Type          EventType `json:"type"`
	Query         string    `json:"query"`
	Terms         []string  `json:"terms"`
	CorpusSize    int       `json:"corpus_size"`
	CorpusVersion string    `json:"corpus_version"`
	ResultIDs     []string  `json:"result_ids"`
	LatencyMs     int64     `json:"latency_ms"`
	CacheHit      bool      `json:"cache_hit"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

type CorpusReloadEvent struct {
	Type            EventType `json:"type"`
	Version         string    `json:"version"`
	PreviousVersion string    `json:"previous_version,omitempty"`
	Documents       int       `json:"documents"`
	Vocabulary      int       `json:"vocabulary"`
	Tokens          int       `json:"tokens"`
	Timestamp       time.Time `json:"timestamp"`
}

// decodeEvent inspects the type field and decodes into the matching struct.
func decodeEvent(value []byte) (any, error) {
	var envelope struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	switch envelope.Type {
	case EventSearch:
		return kafka.DecodeJSON[SearchEvent](value)
	case EventCorpusReload:
		return kafka.DecodeJSON[CorpusReloadEvent](value)
	default:
		return nil, fmt.Errorf("unknown event type %q", envelope.Type)
	}
}

func eventKey(event any) string {
	switch e := event.(type) {
	case SearchEvent:
		return string(EventSearch)
	case CorpusReloadEvent:
		return string(EventCorpusReload) + ":" + e.Version
	default:
		return "analytics"
	}
}
