package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/immutable/seaport/internal/model"
)

// AuditService fans settlement request records out to a daily JSONL file, an
// in-memory ring buffer for the read API, and optionally a durable repo.
type AuditService struct {
	logChan chan *model.AuditLog
	logFile *os.File
	buffer  *auditBuffer
	repo    AuditRepo
}

type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, limit int, from, to *time.Time) ([]*model.AuditLog, error)
}

func NewAuditService(logDir string, bufferSize int, repo AuditRepo) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	// Naive daily file rotation.
	filename := filepath.Join(logDir, "audit-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	svc := &AuditService{
		logChan: make(chan *model.AuditLog, bufferSize),
		logFile: f,
		buffer:  newAuditBuffer(bufferSize),
		repo:    repo,
	}

	go svc.processLogs()

	return svc, nil
}

// Log enqueues the entry without blocking the request path. A full channel
// drops the entry rather than stalling settlement.
func (s *AuditService) Log(entry *model.AuditLog) {
	if s.buffer != nil {
		s.buffer.Add(entry)
	}
	select {
	case s.logChan <- entry:
	default:
		log.Println("⚠️ Audit log buffer full, dropping log entry")
	}
}

func (s *AuditService) List(ctx context.Context, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, limit, from, to)
		if err == nil {
			return records, nil
		}
	}
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.List(limit), nil
}

func (s *AuditService) processLogs() {
	encoder := json.NewEncoder(s.logFile)
	for entry := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), entry); err != nil {
				log.Printf("❌ Failed to write audit log to DB: %v", err)
			}
		}
		if err := encoder.Encode(entry); err != nil {
			log.Printf("❌ Failed to write audit log: %v", err)
		}
	}
}

func (s *AuditService) Close() {
	close(s.logChan)
	s.logFile.Close()
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditLog
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditLog, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.AuditLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *auditBuffer) List(limit int) []*model.AuditLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditLog, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
