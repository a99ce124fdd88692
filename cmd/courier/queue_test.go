package main

import (
	"fmt"
	"testing"

	"courier-dispatch/internal/dispatch-service/core/domain/dto"
)

func testQueue(t *testing.T) *locationQueue {
	t.Helper()
	q, err := openQueue(t.TempDir())
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func queuedItem(i int) dto.SyncLocationItem {
	lat := 8.9 + float64(i)*0.001
	lng := -79.5
	recordedAt := fmt.Sprintf("2026-08-31T12:00:%02dZ", i%60)
	return dto.SyncLocationItem{Lat: &lat, Lng: &lng, RecordedAt: &recordedAt}
}

func TestQueueOldestFirst(t *testing.T) {
	q := testQueue(t)

	for i := 0; i < 10; i++ {
		if err := q.Append(queuedItem(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	items, keys, err := q.OldestBatch(4)
	if err != nil {
		t.Fatalf("oldest batch: %v", err)
	}
	if len(items) != 4 || len(keys) != 4 {
		t.Fatalf("batch size = %d", len(items))
	}
	for i, item := range items {
		if *item.Lat != 8.9+float64(i)*0.001 {
			t.Errorf("item %d out of order: lat = %v", i, *item.Lat)
		}
	}
}

func TestQueueRemoveAdvancesBatch(t *testing.T) {
	q := testQueue(t)

	for i := 0; i < 5; i++ {
		if err := q.Append(queuedItem(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	_, keys, err := q.OldestBatch(3)
	if err != nil {
		t.Fatalf("oldest batch: %v", err)
	}
	if err := q.Remove(keys); err != nil {
		t.Fatalf("remove: %v", err)
	}

	items, _, err := q.OldestBatch(10)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("remaining = %d, want 2", len(items))
	}
	if *items[0].Lat != 8.9+3*0.001 {
		t.Errorf("wrong head after remove: lat = %v", *items[0].Lat)
	}
}

func TestQueueTrimKeepsNewest(t *testing.T) {
	q := testQueue(t)

	for i := 0; i < 20; i++ {
		if err := q.Append(queuedItem(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := q.Trim(15); err != nil {
		t.Fatalf("trim: %v", err)
	}

	n, err := q.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 15 {
		t.Fatalf("len = %d, want 15", n)
	}

	// the survivors are the newest entries
	items, _, err := q.OldestBatch(1)
	if err != nil {
		t.Fatalf("oldest batch: %v", err)
	}
	if *items[0].Lat != 8.9+5*0.001 {
		t.Errorf("oldest survivor lat = %v, want entry 5", *items[0].Lat)
	}
}

func TestQueueTrimNoopUnderLimit(t *testing.T) {
	q := testQueue(t)
	if err := q.Append(queuedItem(0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := q.Trim(1000); err != nil {
		t.Fatalf("trim: %v", err)
	}
	n, _ := q.Len()
	if n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}
}

func TestQueueEmptyBatch(t *testing.T) {
	q := testQueue(t)
	items, keys, err := q.OldestBatch(50)
	if err != nil {
		t.Fatalf("oldest batch: %v", err)
	}
	if len(items) != 0 || len(keys) != 0 {
		t.Fatal("empty queue must return an empty batch")
	}
}
