package storage

import (
	"fmt"

	apperrors "github.com/garyellow/anan-assistant-go/internal/errors"
)

// ErrNotFound is returned when a history row does not exist.
var ErrNotFound = fmt.Errorf("storage: history record not found: %w", apperrors.ErrNotFound)

// TimeLayout is how history times are stored and shown.
const TimeLayout = "2006-01-02 15:04:05"

// Pages a question can come from.
const (
	PageAsk  = "AIに質問"
	PageLINE = "LINE"
	PageCLI  = "CLI"
)

// HistoryRecord is one answered question.
type HistoryRecord struct {
	ID       int64  `json:"id"`
	Time     string `json:"time"`
	Page     string `json:"page"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
