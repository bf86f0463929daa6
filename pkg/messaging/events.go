package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Compression events
	EventFileCompressed = "compression.file.compressed"
	EventFileFailed     = "compression.file.failed"
	EventBatchCompleted = "compression.batch.completed"

	// OCR events
	EventDocumentAnalyzed = "ocr.document.analyzed"
)

// Exchange names
const (
	ExchangeCompressionEvents = "compression.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// FileCompressedEvent is published after each successfully compressed file
type FileCompressedEvent struct {
	JobID          string  `json:"job_id"`
	FileName       string  `json:"file_name"`
	Category       string  `json:"category"`
	OriginalSize   int64   `json:"original_size"`
	CompressedSize int64   `json:"compressed_size"`
	Reduction      float64 `json:"reduction"`
	DurationMs     int64   `json:"duration_ms"`
}

// FileFailedEvent is published when a file fails to compress
type FileFailedEvent struct {
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
	Category string `json:"category"`
	Error    string `json:"error"`
}

// BatchCompletedEvent is published after a full batch finishes
type BatchCompletedEvent struct {
	BatchID    string `json:"batch_id"`
	TotalFiles int    `json:"total_files"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Combined   bool   `json:"combined"`
	Analyzed   bool   `json:"analyzed"`
}

// DocumentAnalyzedEvent is published after a merged document finishes OCR analysis
type DocumentAnalyzedEvent struct {
	DocumentName string `json:"document_name"`
	PageCount    int    `json:"page_count"`
	TotalWords   int    `json:"total_words"`
	Language     string `json:"language"`
	ImageCount   int    `json:"image_count"`
	Chunked      bool   `json:"chunked"`
}
