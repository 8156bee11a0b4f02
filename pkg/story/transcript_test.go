package story

import (
	"sync"
	"testing"
)

func TestTranscript_Seeded(t *testing.T) {
	tr := NewTranscript()
	got := tr.Snapshot()
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Speaker != SpeakerModel || got[0].Text != Greeting {
		t.Fatalf("seed = %+v", got[0])
	}
}

func TestTranscript_Order(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("a")
	tr.AppendModel("b")
	tr.AppendUser("c")

	want := []Turn{
		{SpeakerModel, Greeting},
		{SpeakerUser, "a"},
		{SpeakerModel, "b"},
		{SpeakerUser, "c"},
	}
	got := tr.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if tr.Len() != 4 {
		t.Errorf("Len = %d", tr.Len())
	}
}

func TestTranscript_SnapshotIsCopy(t *testing.T) {
	tr := NewTranscript()
	snap := tr.Snapshot()
	snap[0].Text = "changed"
	tr.AppendUser("later")

	if got := tr.Snapshot()[0].Text; got != Greeting {
		t.Fatalf("seed = %q, snapshot aliased the transcript", got)
	}
	if len(snap) != 1 {
		t.Fatalf("old snapshot grew to %d", len(snap))
	}
}

func TestTranscript_Concurrent(t *testing.T) {
	tr := NewTranscript()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tr.appendExchange("q", "a")
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()

	turns := tr.Snapshot()
	if len(turns) != 1+8*100*2 {
		t.Fatalf("len = %d", len(turns))
	}
	for i := 1; i < len(turns); i += 2 {
		if turns[i].Speaker != SpeakerUser || turns[i+1].Speaker != SpeakerModel {
			t.Fatalf("exchange at %d interleaved: %+v %+v", i, turns[i], turns[i+1])
		}
	}
}
