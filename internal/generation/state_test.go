package generation

import (
	"testing"

	"dude/internal/domain"
)

func TestStoreStartsIdle(t *testing.T) {
	s := NewStore()
	snap := s.Snapshot()
	if snap.Status != domain.GenerationIdle {
		t.Fatalf("status = %q, want idle", snap.Status)
	}
	if snap.Media != nil || snap.Progress != 0 || snap.ErrorMessage != "" {
		t.Fatalf("idle snapshot not empty: %+v", snap)
	}
}

func TestStoreFansOutToSubscribers(t *testing.T) {
	s := NewStore()
	first, cancelFirst := s.Subscribe()
	second, cancelSecond := s.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	s.set(func(snap *Snapshot) {
		snap.Status = domain.GenerationGenerating
		snap.Progress = 42
	})

	for name, ch := range map[string]<-chan Snapshot{"first": first, "second": second} {
		select {
		case snap := <-ch:
			if snap.Status != domain.GenerationGenerating || snap.Progress != 42 {
				t.Fatalf("%s subscriber got %+v", name, snap)
			}
		default:
			t.Fatalf("%s subscriber received nothing", name)
		}
	}
}

func TestStoreUnsubscribeClosesChannel(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Fatalf("channel still open after unsubscribe")
	}

	// A second cancel and further writes must not panic.
	cancel()
	s.set(func(snap *Snapshot) { snap.Progress = 1 })
}

func TestStoreSlowSubscriberDoesNotBlockWriter(t *testing.T) {
	s := NewStore()
	_, cancel := s.Subscribe()
	defer cancel()

	// More writes than the subscription buffer holds; set must never block.
	for i := 0; i < 100; i++ {
		s.set(func(snap *Snapshot) { snap.Progress = i })
	}
	if got := s.Snapshot().Progress; got != 99 {
		t.Fatalf("progress = %d, want 99", got)
	}
}
