package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"

	"github.com/bytedance/sonic"
)

// TurnRecord is one journal line for a finished turn
type TurnRecord struct {
	SessionID string         `json:"session_id"`
	TurnID    string         `json:"turn_id"`
	Timestamp time.Time      `json:"timestamp"`
	Utterance string         `json:"utterance"`
	Intent    pkg.IntentKind `json:"intent"`
	Response  string         `json:"response"`
	Success   bool           `json:"success"`
}

// NewTurnRecord builds the journal entry for a finished turn
func NewTurnRecord(sessionID, utterance string, result *pkg.TurnResult) TurnRecord {
	return TurnRecord{
		SessionID: sessionID,
		TurnID:    result.TurnID,
		Timestamp: time.Now(),
		Utterance: utterance,
		Intent:    result.Intent,
		Response:  result.ResponseText,
		Success:   result.Success,
	}
}

// Journal keeps the per-session turn history on disk
type Journal interface {
	LoadEntries(sessionID string) ([]TurnRecord, error)
	SaveEntry(entry TurnRecord) error
	GetStats(sessionID string) (*JournalStats, error)
	CleanupOldEntries(sessionID string, maxAge time.Duration) error
}

// JSONJournal writes one JSON array file per session under baseDir
type JSONJournal struct {
	baseDir string
	mu      sync.Mutex
}

// NewJSONJournal creates a new JSON-file journal
func NewJSONJournal(baseDir string) *JSONJournal {
	return &JSONJournal{baseDir: baseDir}
}

func (j *JSONJournal) path(sessionID string) string {
	return filepath.Join(j.baseDir, fmt.Sprintf("%s.json", filepath.Base(sessionID)))
}

// LoadEntries loads all journal entries for a session
func (j *JSONJournal) LoadEntries(sessionID string) ([]TurnRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.load(sessionID)
}

func (j *JSONJournal) load(sessionID string) ([]TurnRecord, error) {
	data, err := os.ReadFile(j.path(sessionID))
	if os.IsNotExist(err) {
		return []TurnRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal file: %w", err)
	}

	var entries []TurnRecord
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse journal file: %w", err)
	}
	return entries, nil
}

func (j *JSONJournal) write(sessionID string, entries []TurnRecord) error {
	data, err := sonic.ConfigStd.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal data: %w", err)
	}
	if err := os.WriteFile(j.path(sessionID), data, 0644); err != nil {
		return fmt.Errorf("failed to write journal file: %w", err)
	}
	return nil
}

// SaveEntry appends a single entry to the session's journal
func (j *JSONJournal) SaveEntry(entry TurnRecord) error {
	if entry.SessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	entries, err := j.load(entry.SessionID)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", entry.SessionID).Msg("Failed to load existing journal, starting fresh")
		entries = []TurnRecord{}
	}
	entries = append(entries, entry)

	if err := j.write(entry.SessionID, entries); err != nil {
		return err
	}

	logger.Debug().
		Str("session_id", entry.SessionID).
		Str("turn_id", entry.TurnID).
		Int("entries", len(entries)).
		Msg("Saved turn to journal")
	return nil
}

// JournalStats summarises a session's journal
type JournalStats struct {
	SessionID     string    `json:"session_id"`
	TotalEntries  int       `json:"total_entries"`
	FailedTurns   int       `json:"failed_turns"`
	OldestEntry   time.Time `json:"oldest_entry"`
	NewestEntry   time.Time `json:"newest_entry"`
	TopIntents    []string  `json:"top_intents"`
	FileSizeBytes int64     `json:"file_size_bytes"`
}

// GetStats returns statistics about a session's journal
func (j *JSONJournal) GetStats(sessionID string) (*JournalStats, error) {
	entries, err := j.LoadEntries(sessionID)
	if err != nil {
		return nil, err
	}

	stats := &JournalStats{
		SessionID:  sessionID,
		TopIntents: []string{},
	}
	if len(entries) == 0 {
		return stats, nil
	}

	stats.TotalEntries = len(entries)
	stats.OldestEntry = entries[0].Timestamp
	stats.NewestEntry = entries[0].Timestamp

	intentCounts := make(map[string]int)
	for _, entry := range entries {
		if !entry.Success {
			stats.FailedTurns++
		}
		if entry.Intent != "" {
			intentCounts[string(entry.Intent)]++
		}
		if entry.Timestamp.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.Timestamp
		}
		if entry.Timestamp.After(stats.NewestEntry) {
			stats.NewestEntry = entry.Timestamp
		}
	}
	stats.TopIntents = getTopIntents(intentCounts, 5)

	if info, err := os.Stat(j.path(sessionID)); err == nil {
		stats.FileSizeBytes = info.Size()
	}

	return stats, nil
}

// CleanupOldEntries removes entries older than maxAge
func (j *JSONJournal) CleanupOldEntries(sessionID string, maxAge time.Duration) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.load(sessionID)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	kept := []TurnRecord{}
	for _, entry := range entries {
		if entry.Timestamp.After(cutoff) {
			kept = append(kept, entry)
		}
	}

	if len(kept) == len(entries) {
		return nil
	}

	if err := j.write(sessionID, kept); err != nil {
		return err
	}

	logger.Info().
		Str("session_id", sessionID).
		Int("removed", len(entries)-len(kept)).
		Msg("Cleaned up journal")
	return nil
}

// getTopIntents orders by count, then name for stable output
func getTopIntents(intentCounts map[string]int, limit int) []string {
	type intentCount struct {
		intent string
		count  int
	}

	counts := make([]intentCount, 0, len(intentCounts))
	for intent, count := range intentCounts {
		counts = append(counts, intentCount{intent, count})
	}
	sort.Slice(counts, func(a, b int) bool {
		if counts[a].count != counts[b].count {
			return counts[a].count > counts[b].count
		}
		return counts[a].intent < counts[b].intent
	})

	if len(counts) > limit {
		counts = counts[:limit]
	}
	top := make([]string, 0, len(counts))
	for _, c := range counts {
		top = append(top, c.intent)
	}
	return top
}
