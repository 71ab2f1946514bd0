package service

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncer_CoalescesPerKey(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)

	var mu sync.Mutex
	fired := map[string][]uint64{}
	record := func(key string) func(uint64) {
		return func(id uint64) {
			mu.Lock()
			fired[key] = append(fired[key], id)
			mu.Unlock()
		}
	}

	for i := 0; i < 5; i++ {
		d.Schedule("source", record("source"))
	}
	last, _ := d.Schedule("destination", record("destination"))
	time.Sleep(30 * time.Millisecond)
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if got := fired["source"]; len(got) != 1 || got[0] != 5 {
		t.Errorf("expected one source call with id 5, got %v", got)
	}
	if got := fired["destination"]; len(got) != 1 || got[0] != last {
		t.Errorf("expected one destination call with id %d, got %v", last, got)
	}
}

func TestDebouncer_IdsIncreaseAndSupersede(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.Stop()

	first, ok := d.Schedule("k", func(uint64) {})
	if !ok {
		t.Fatal("schedule refused")
	}
	if !d.IsLatest("k", first) {
		t.Error("expected first id to be latest")
	}

	second, _ := d.Schedule("k", func(uint64) {})
	if second <= first {
		t.Errorf("ids must increase: %d then %d", first, second)
	}
	if d.IsLatest("k", first) {
		t.Error("superseded id reported latest")
	}

	d.Clear("k")
	if d.IsLatest("k", second) {
		t.Error("cleared id reported latest")
	}

	third, _ := d.Schedule("k", func(uint64) {})
	if third <= second {
		t.Errorf("ids must keep increasing after clear: %d then %d", second, third)
	}
}

func TestDebouncer_ClearCancelsPending(t *testing.T) {
	d := NewDebouncer(5 * time.Millisecond)

	called := make(chan uint64, 1)
	d.Schedule("k", func(id uint64) { called <- id })
	d.Clear("k")

	time.Sleep(20 * time.Millisecond)
	d.Wait()

	select {
	case id := <-called:
		t.Errorf("cleared call fired with id %d", id)
	default:
	}
}

func TestDebouncer_StopRefusesAndInvalidates(t *testing.T) {
	d := NewDebouncer(time.Hour)

	id, _ := d.Schedule("k", func(uint64) { t.Error("stopped timer fired") })
	d.Stop()
	d.Wait()

	if d.IsLatest("k", id) {
		t.Error("no id is latest after stop")
	}
	if _, ok := d.Schedule("k", func(uint64) {}); ok {
		t.Error("schedule accepted after stop")
	}

	// Stop is idempotent.
	d.Stop()
}
