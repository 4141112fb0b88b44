package thread_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"campusagent/internal/testutil"
	"campusagent/internal/thread"
)

func textMessage(role ai.Role, text string) *thread.Message {
	return &thread.Message{Role: string(role), Content: []*ai.Part{ai.NewTextPart(text)}}
}

// TestThreadStoreIntegration exercises the real PostgreSQL thread store: the
// owner upsert, row-locked sequence assignment and the history window.
func TestThreadStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pg, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := thread.NewStore(pg.Pool, nil)

	t.Run("open is an idempotent upsert", func(t *testing.T) {
		first, err := s.OpenForOwner(ctx, "dean@campus.edu")
		if err != nil {
			t.Fatalf("OpenForOwner() error = %v", err)
		}
		second, err := s.OpenForOwner(ctx, "dean@campus.edu")
		if err != nil {
			t.Fatalf("OpenForOwner(again) error = %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("same owner got two threads: %s vs %s", first.ID, second.ID)
		}
		if second.UpdatedAt.Before(first.UpdatedAt) {
			t.Errorf("updated_at went backwards: %v then %v", first.UpdatedAt, second.UpdatedAt)
		}

		other, err := s.OpenForOwner(ctx, "provost@campus.edu")
		if err != nil {
			t.Fatalf("OpenForOwner(other) error = %v", err)
		}
		if other.ID == first.ID {
			t.Error("different owners share a thread")
		}
	})

	t.Run("append assigns ascending sequence numbers", func(t *testing.T) {
		th, err := s.OpenForOwner(ctx, "seq@campus.edu")
		if err != nil {
			t.Fatalf("OpenForOwner() error = %v", err)
		}

		if err := s.AppendMessages(ctx, th.ID, []*thread.Message{
			textMessage(ai.RoleUser, "how many students?"),
			textMessage(ai.RoleModel, "There are 4 students."),
		}); err != nil {
			t.Fatalf("AppendMessages() error = %v", err)
		}
		if err := s.AppendMessages(ctx, th.ID, []*thread.Message{
			textMessage(ai.RoleUser, "list them"),
		}); err != nil {
			t.Fatalf("AppendMessages(second batch) error = %v", err)
		}

		msgs, err := s.History(ctx, th.ID, 100)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(msgs) != 3 {
			t.Fatalf("History() returned %d messages, want 3", len(msgs))
		}
		for i, msg := range msgs {
			if msg.SequenceNumber != int64(i+1) {
				t.Errorf("msgs[%d].SequenceNumber = %d, want %d", i, msg.SequenceNumber, i+1)
			}
		}
		if msgs[0].Content[0].Text != "how many students?" {
			t.Errorf("msgs[0] text = %q", msgs[0].Content[0].Text)
		}
	})

	t.Run("append to missing thread", func(t *testing.T) {
		err := s.AppendMessages(ctx, uuid.New(), []*thread.Message{
			textMessage(ai.RoleUser, "hello?"),
		})
		if !errors.Is(err, thread.ErrNotFound) {
			t.Errorf("AppendMessages(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent appends serialize", func(t *testing.T) {
		th, err := s.OpenForOwner(ctx, "busy@campus.edu")
		if err != nil {
			t.Fatalf("OpenForOwner() error = %v", err)
		}

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.AppendMessages(ctx, th.ID, []*thread.Message{
					textMessage(ai.RoleUser, fmt.Sprintf("message %d", i)),
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent AppendMessages() error = %v", err)
			}
		}

		msgs, err := s.History(ctx, th.ID, 100)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(msgs) != writers {
			t.Fatalf("History() returned %d messages, want %d", len(msgs), writers)
		}
		// The row lock must have produced a gap-free ascending sequence.
		for i, msg := range msgs {
			if msg.SequenceNumber != int64(i+1) {
				t.Errorf("msgs[%d].SequenceNumber = %d, want %d", i, msg.SequenceNumber, i+1)
			}
		}
	})

	t.Run("history window keeps the most recent", func(t *testing.T) {
		th, err := s.OpenForOwner(ctx, "window@campus.edu")
		if err != nil {
			t.Fatalf("OpenForOwner() error = %v", err)
		}
		for i := 1; i <= 5; i++ {
			if err := s.AppendMessages(ctx, th.ID, []*thread.Message{
				textMessage(ai.RoleUser, fmt.Sprintf("turn %d", i)),
			}); err != nil {
				t.Fatalf("AppendMessages(%d) error = %v", i, err)
			}
		}

		msgs, err := s.History(ctx, th.ID, 2)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("History(limit 2) returned %d messages, want 2", len(msgs))
		}
		if msgs[0].Content[0].Text != "turn 4" || msgs[1].Content[0].Text != "turn 5" {
			t.Errorf("window = [%q %q], want the two newest in order",
				msgs[0].Content[0].Text, msgs[1].Content[0].Text)
		}
	})

	t.Run("reset is idempotent", func(t *testing.T) {
		th, err := s.OpenForOwner(ctx, "reset@campus.edu")
		if err != nil {
			t.Fatalf("OpenForOwner() error = %v", err)
		}
		if err := s.AppendMessages(ctx, th.ID, []*thread.Message{
			textMessage(ai.RoleUser, "forget this"),
		}); err != nil {
			t.Fatalf("AppendMessages() error = %v", err)
		}

		if err := s.Reset(ctx, "reset@campus.edu"); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		if err := s.Reset(ctx, "reset@campus.edu"); err != nil {
			t.Fatalf("Reset(again) error = %v", err)
		}

		fresh, err := s.OpenForOwner(ctx, "reset@campus.edu")
		if err != nil {
			t.Fatalf("OpenForOwner(after reset) error = %v", err)
		}
		if fresh.ID == th.ID {
			t.Error("reset did not delete the thread")
		}
		msgs, err := s.History(ctx, fresh.ID, 100)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("fresh thread has %d messages, want 0", len(msgs))
		}
	})
}
