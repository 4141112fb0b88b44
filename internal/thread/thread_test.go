package thread

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestToModelMessages(t *testing.T) {
	if got := ToModelMessages(nil); len(got) != 0 {
		t.Errorf("ToModelMessages(nil) = %v, want empty", got)
	}

	msgs := []*Message{
		{Role: string(ai.RoleUser), Content: []*ai.Part{ai.NewTextPart("hello")}},
		{Role: string(ai.RoleModel), Content: []*ai.Part{
			{Kind: ai.PartToolRequest, ToolRequest: &ai.ToolRequest{Name: "listStudents"}},
		}},
		{Role: string(ai.RoleTool), Content: []*ai.Part{
			ai.NewToolResponsePart(&ai.ToolResponse{Name: "listStudents"}),
		}},
	}

	out := ToModelMessages(msgs)
	if len(out) != 3 {
		t.Fatalf("got %d messages, want 3", len(out))
	}
	if out[0].Role != ai.RoleUser || out[0].Content[0].Text != "hello" {
		t.Errorf("out[0] = %+v", out[0])
	}
	if out[1].Role != ai.RoleModel || out[1].Content[0].ToolRequest == nil {
		t.Errorf("out[1] lost the tool request part")
	}
	if out[2].Role != ai.RoleTool || out[2].Content[0].ToolResponse == nil {
		t.Errorf("out[2] lost the tool response part")
	}
}
