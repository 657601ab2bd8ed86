package chat

import (
	"reflect"
	"testing"

	"github.com/pixelvault/shopchat/internal/stream"
)

func streamingCount(t *Transcript) int {
	n := 0
	for _, m := range t.Messages() {
		if m.Streaming {
			n++
		}
	}
	return n
}

func TestTranscript_OnChunk_Concatenation(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{
			name:   "single chunk",
			chunks: []string{"Hello"},
			want:   "Hello",
		},
		{
			name:   "chunks accumulate in arrival order",
			chunks: []string{"Sure, ", "I can help. ", "What's the delivery ", "address?"},
			want:   "Sure, I can help. What's the delivery address?",
		},
		{
			name:   "empty chunk preserved",
			chunks: []string{"a", "", "b"},
			want:   "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr Transcript
			tr.AppendUser("Buy Elden Ring for me")
			for _, c := range tt.chunks {
				tr.OnChunk(c)
			}

			last, ok := tr.LastAssistant()
			if !ok {
				t.Fatal("no assistant message accumulated")
			}
			if last.Content != tt.want {
				t.Errorf("content = %q, want %q", last.Content, tt.want)
			}
			if tr.Len() != 2 {
				t.Errorf("Len() = %d, want 2 (one user, one assistant)", tr.Len())
			}
			if got := streamingCount(&tr); got != 1 {
				t.Errorf("streaming messages = %d, want exactly 1 while in flight", got)
			}
		})
	}
}

func TestTranscript_OnDone_ClearsStreamingAndAttaches(t *testing.T) {
	var tr Transcript
	tr.AppendUser("buy it")
	tr.OnChunk("Ordered!")

	meta := stream.Meta{OrderID: "o1", PaymentURL: "/pay/1"}
	tr.OnDone([]string{"p1"}, meta)

	if got := streamingCount(&tr); got != 0 {
		t.Errorf("streaming messages after done = %d, want 0", got)
	}
	last, _ := tr.LastAssistant()
	if !reflect.DeepEqual(last.ProductIDs, []string{"p1"}) {
		t.Errorf("ProductIDs = %v, want [p1]", last.ProductIDs)
	}
	if last.Meta != meta {
		t.Errorf("Meta = %+v, want %+v", last.Meta, meta)
	}

	// The flag must not come back for this message.
	tr.OnChunk("next turn text")
	if tr.Len() != 3 {
		t.Errorf("Len() = %d, want 3: a new chunk after done starts a new message", tr.Len())
	}
}

func TestTranscript_OnDone_WithoutPriorChunk(t *testing.T) {
	var tr Transcript
	tr.AppendUser("buy it")
	tr.OnDone([]string{"p9"}, stream.Meta{OrderID: "o2"})

	last, ok := tr.LastAssistant()
	if !ok {
		t.Fatal("done without prior chunk must create an assistant message")
	}
	if last.Content != "" {
		t.Errorf("content = %q, want empty", last.Content)
	}
	if !reflect.DeepEqual(last.ProductIDs, []string{"p9"}) {
		t.Errorf("ProductIDs = %v, want [p9]", last.ProductIDs)
	}
}

func TestTranscript_OnDone_NilProductIDs(t *testing.T) {
	var tr Transcript
	tr.OnChunk("hi")
	tr.OnDone(nil, stream.Meta{})

	last, _ := tr.LastAssistant()
	if last.ProductIDs == nil {
		t.Error("ProductIDs must be an empty slice, not nil")
	}
}

func TestTranscript_Replace_IsAtomic(t *testing.T) {
	var tr Transcript
	tr.AppendUser("old question")
	tr.OnChunk("old answer")

	repl := []Message{
		{Role: RoleUser, Content: "from history"},
		{Role: RoleAssistant, Content: "restored"},
	}
	tr.Replace(repl)

	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
	for _, m := range tr.Messages() {
		if m.Content == "old question" || m.Content == "old answer" {
			t.Errorf("message from previous thread survived Replace: %q", m.Content)
		}
	}
}

func TestTranscript_SettleAll(t *testing.T) {
	var tr Transcript
	tr.OnChunk("partial")
	tr.SettleAll()
	if got := streamingCount(&tr); got != 0 {
		t.Errorf("streaming messages = %d, want 0 after SettleAll", got)
	}
}
