// Package file stores the jackpot log as a JSON document on local disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"triviacast-service/internal/domain"
)

// JackpotLog is a JSON array of entries rewritten atomically on every change.
// A single process owns the file; the mutex serializes read-modify-write.
type JackpotLog struct {
	path string

	mu      sync.Mutex
	entries []domain.JackpotLogEntry
	loaded  bool
}

func NewJackpotLog(path string) *JackpotLog {
	return &JackpotLog{path: path}
}

func (l *JackpotLog) Append(_ context.Context, entry domain.JackpotLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(); err != nil {
		return err
	}
	next := append(append(make([]domain.JackpotLogEntry, 0, len(l.entries)+1), l.entries...), entry)
	if err := l.writeLocked(next); err != nil {
		return err
	}
	l.entries = next
	return nil
}

func (l *JackpotLog) ListByAddress(_ context.Context, address string, limit int) ([]domain.JackpotLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(); err != nil {
		return nil, err
	}
	out := make([]domain.JackpotLogEntry, 0)
	for i := len(l.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if strings.EqualFold(l.entries[i].Address, address) {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

func (l *JackpotLog) FindClaim(_ context.Context, address, nonce string) (domain.JackpotLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(); err != nil {
		return domain.JackpotLogEntry{}, err
	}
	if i := l.indexLocked(address, nonce); i >= 0 {
		return l.entries[i], nil
	}
	return domain.JackpotLogEntry{}, domain.ErrClaimNotFound
}

func (l *JackpotLog) MarkPaid(_ context.Context, address, nonce, txHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(); err != nil {
		return err
	}
	i := l.indexLocked(address, nonce)
	if i < 0 {
		return domain.ErrClaimNotFound
	}
	if l.entries[i].Paid {
		return domain.ErrAlreadyPaid
	}
	for _, e := range l.entries {
		if e.TxHash != "" && strings.EqualFold(e.TxHash, txHash) {
			return domain.ErrTxAlreadyUsed
		}
	}

	next := append([]domain.JackpotLogEntry(nil), l.entries...)
	next[i].Paid = true
	next[i].TxHash = txHash
	if err := l.writeLocked(next); err != nil {
		return err
	}
	l.entries = next
	return nil
}

func (l *JackpotLog) indexLocked(address, nonce string) int {
	for i := range l.entries {
		if l.entries[i].ClaimNonce == nonce && strings.EqualFold(l.entries[i].Address, address) {
			return i
		}
	}
	return -1
}

func (l *JackpotLog) loadLocked() error {
	if l.loaded {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		l.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read jackpot log: %w", err)
	}
	var entries []domain.JackpotLogEntry
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parse jackpot log: %w", err)
		}
	}
	l.entries = entries
	l.loaded = true
	return nil
}

// writeLocked replaces the file via a temp file and rename so readers never
// see a partial document.
func (l *JackpotLog) writeLocked(entries []domain.JackpotLogEntry) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create jackpot log dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".jackpot-*.json")
	if err != nil {
		return fmt.Errorf("create temp log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace jackpot log: %w", err)
	}
	return nil
}
