package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/voxhall/voxhall/pkg/memory"
)

// scriptedModel returns canned content and records the messages it saw.
type scriptedModel struct {
	content string
	err     error
	seen    [][]*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.seen = append(m.seen, input)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.content, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func TestGenerateReplyBuildsConversation(t *testing.T) {
	fake := &scriptedModel{content: "Nice move!"}
	client := NewWithModel(fake, "AI Assistant", 0.7, 1000)

	turns := []*schema.Message{
		schema.UserMessage("I like chess"),
		schema.AssistantMessage("Chess is great!", nil),
		schema.UserMessage("What opening should I learn?"),
	}

	reply, err := client.GenerateReply(context.Background(), turns, "User plays chess on weekends")
	if err != nil {
		t.Fatalf("GenerateReply() error = %v", err)
	}
	if reply != "Nice move!" {
		t.Fatalf("GenerateReply() = %q, want %q", reply, "Nice move!")
	}

	sent := fake.seen[0]
	// persona system + context system + 3 turns
	if len(sent) != 5 {
		t.Fatalf("model saw %d messages, want 5", len(sent))
	}
	if sent[0].Role != schema.System || !strings.Contains(sent[0].Content, "AI Assistant") {
		t.Fatalf("first message = %+v, want persona system prompt", sent[0])
	}
	if sent[1].Role != schema.System || !strings.Contains(sent[1].Content, "User plays chess on weekends") {
		t.Fatalf("second message = %+v, want context system message", sent[1])
	}
	if sent[4].Content != "What opening should I learn?" {
		t.Fatalf("last message = %+v, want the newest user turn", sent[4])
	}
}

func TestGenerateReplyOmitsEmptyContext(t *testing.T) {
	fake := &scriptedModel{content: "Hello!"}
	client := NewWithModel(fake, "AI Assistant", 0.7, 1000)

	if _, err := client.GenerateReply(context.Background(),
		[]*schema.Message{schema.UserMessage("hi")}, ""); err != nil {
		t.Fatalf("GenerateReply() error = %v", err)
	}
	if len(fake.seen[0]) != 2 {
		t.Fatalf("model saw %d messages, want 2 (persona + turn)", len(fake.seen[0]))
	}
}

func TestGenerateReplyPropagatesError(t *testing.T) {
	fake := &scriptedModel{err: errors.New("model down")}
	client := NewWithModel(fake, "AI Assistant", 0.7, 1000)

	if _, err := client.GenerateReply(context.Background(),
		[]*schema.Message{schema.UserMessage("hi")}, ""); err == nil {
		t.Fatalf("GenerateReply() expected error")
	}
}

func TestSummarizeMemories(t *testing.T) {
	fake := &scriptedModel{content: "User enjoys chess."}
	client := NewWithModel(fake, "AI Assistant", 0.7, 1000)

	records := []memory.Record{
		{ID: "m1", Text: "I like chess"},
		{ID: "m2", Text: "I play on weekends"},
	}

	summary := client.SummarizeMemories(context.Background(), records)
	if summary != "User enjoys chess." {
		t.Fatalf("SummarizeMemories() = %q, want %q", summary, "User enjoys chess.")
	}
	prompt := fake.seen[0][0].Content
	if !strings.Contains(prompt, "I like chess") || !strings.Contains(prompt, "I play on weekends") {
		t.Fatalf("summary prompt missing memory texts: %q", prompt)
	}
}

func TestSummarizeMemoriesEmptyAndFailure(t *testing.T) {
	client := NewWithModel(&scriptedModel{content: "unused"}, "AI Assistant", 0.7, 1000)
	if got := client.SummarizeMemories(context.Background(), nil); got != "" {
		t.Fatalf("SummarizeMemories(nil) = %q, want empty", got)
	}

	failing := NewWithModel(&scriptedModel{err: errors.New("model down")}, "AI Assistant", 0.7, 1000)
	if got := failing.SummarizeMemories(context.Background(), []memory.Record{{Text: "x"}}); got != "" {
		t.Fatalf("SummarizeMemories() on failure = %q, want empty", got)
	}
}

func TestSummarizeMemoriesCapsPromptSize(t *testing.T) {
	fake := &scriptedModel{content: "summary"}
	client := NewWithModel(fake, "AI Assistant", 0.7, 1000)

	records := make([]memory.Record, 15)
	for i := range records {
		records[i] = memory.Record{Text: "fact-" + string(rune('a'+i))}
	}
	client.SummarizeMemories(context.Background(), records)

	prompt := fake.seen[0][0].Content
	if strings.Contains(prompt, "fact-"+string(rune('a'+12))) {
		t.Fatalf("summary prompt includes memories beyond the cap")
	}
	if !strings.Contains(prompt, "fact-"+string(rune('a'+9))) {
		t.Fatalf("summary prompt missing memory within the cap")
	}
}
