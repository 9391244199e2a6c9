package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voxflow-ai/voice-agent/internal/vad"
)

func testFactory(id string) *State {
	return NewState(
		id,
		vad.NewSegmenter(vad.DefaultSegmenterConfig()),
		vad.NewNoiseTracker(vad.NoiseTrackerConfig{WindowSize: 100, MinSamples: 10, SpeechCutoff: 500, Fallback: 100}),
	)
}

func TestRegistry_GetOrCreate(t *testing.T) {
	reg := NewRegistry(testFactory)

	a := reg.GetOrCreate("conn-1")
	if a == nil {
		t.Fatal("Expected a session")
	}
	if a.ID != "conn-1" {
		t.Errorf("Expected ID 'conn-1', got '%s'", a.ID)
	}

	b := reg.GetOrCreate("conn-1")
	if a != b {
		t.Error("Expected the same session for the same id")
	}

	if reg.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", reg.Len())
	}
}

func TestRegistry_ConcurrentCreateFirstWriterWins(t *testing.T) {
	reg := NewRegistry(testFactory)

	const goroutines = 32
	results := make([]*State, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = reg.GetOrCreate("conn-race")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("Concurrent GetOrCreate returned different sessions")
		}
	}
	if reg.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", reg.Len())
	}
}

func TestRegistry_RemoveCancelsBackgroundWork(t *testing.T) {
	reg := NewRegistry(testFactory)
	state := reg.GetOrCreate("conn-2")

	cancelled := make(chan struct{})
	state.Go(func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})

	reg.Remove("conn-2")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("Background task not cancelled on Remove")
	}

	if !state.Closed() {
		t.Error("Session not marked closed after Remove")
	}
	if reg.Len() != 0 {
		t.Errorf("Expected empty registry after Remove, got %d sessions", reg.Len())
	}
	if fresh := reg.GetOrCreate("conn-2"); fresh == state || fresh.Closed() {
		t.Error("Expected a fresh session for a removed id")
	}
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	reg := NewRegistry(testFactory)
	reg.Remove("never-created")
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry(testFactory)
	a := reg.GetOrCreate("a")
	b := reg.GetOrCreate("b")

	reg.CloseAll()

	if reg.Len() != 0 {
		t.Errorf("Expected empty registry, got %d sessions", reg.Len())
	}
	if !a.Closed() || !b.Closed() {
		t.Error("Sessions not closed by CloseAll")
	}
}

func TestState_AppendTurn(t *testing.T) {
	state := testFactory("s")

	state.SetPendingTranscript("hello")
	state.AppendTurn("hello", "hi there")

	want := "User: hello\nAssistant: hi there"
	if state.History() != want {
		t.Errorf("Unexpected history: %q", state.History())
	}
	if state.PendingTranscript() != "" {
		t.Error("Pending transcript not cleared after AppendTurn")
	}

	state.AppendTurn("how are you?", "doing well")
	want += "\nUser: how are you?\nAssistant: doing well"
	if state.History() != want {
		t.Errorf("Unexpected multi-turn history: %q", state.History())
	}
}

func TestState_WaitReturnsAfterTasksFinish(t *testing.T) {
	state := testFactory("w")

	ran := false
	state.Go(func(ctx context.Context) {
		ran = true
	})
	state.Close()
	state.Wait()

	if !ran {
		t.Error("Background task did not run")
	}
}

func TestState_GoAfterCloseDoesNotStartTask(t *testing.T) {
	state := testFactory("c")
	state.Close()

	ran := make(chan struct{})
	state.Go(func(ctx context.Context) {
		close(ran)
	})
	state.Wait()

	select {
	case <-ran:
		t.Error("Task started on a closed session")
	default:
	}
}

func TestState_CloseDropsBufferedAudio(t *testing.T) {
	state := testFactory("b")
	state.Buffer.Append(make([]byte, 640))

	state.Close()

	if state.Buffer.Len() != 0 {
		t.Errorf("Expected empty buffer after Close, got %d frames", state.Buffer.Len())
	}
}
