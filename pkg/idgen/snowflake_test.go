package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerateIsUniqueUnderConcurrency(t *testing.T) {
	const workers, perWorker = 8, 2000

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, GenerateTransactionNo())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, no := range local {
				seen[no] = struct{}{}
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("duplicate numbers generated: got=%d unique want=%d", len(seen), workers*perWorker)
	}
}

func TestGeneratePrefixes(t *testing.T) {
	if no := GenerateInvoiceNo(); !strings.HasPrefix(no, "INV") {
		t.Fatalf("unexpected invoice no: %q", no)
	}
	if no := GenerateTransactionNo(); !strings.HasPrefix(no, "TXN") {
		t.Fatalf("unexpected transaction no: %q", no)
	}
}

func TestNewSnowflakeRejectsWorkerID(t *testing.T) {
	if _, err := NewSnowflake(-1); err == nil {
		t.Fatal("expected error for negative worker id")
	}
	if _, err := NewSnowflake(maxWorkerID + 1); err == nil {
		t.Fatal("expected error for worker id overflow")
	}
	s, err := NewSnowflake(3)
	if err != nil {
		t.Fatalf("NewSnowflake failed: %v", err)
	}
	prev := s.Generate()
	for i := 0; i < 10000; i++ {
		next := s.Generate()
		if next <= prev {
			t.Fatalf("ids not increasing: %d after %d", next, prev)
		}
		prev = next
	}
}
