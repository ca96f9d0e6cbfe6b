package messaging

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
)

func TestResolveDeliversToWaiter(t *testing.T) {
	pending := newPendingReplies()
	wait := pending.register("corr-1")

	reply := contracts.Reply{Data: json.RawMessage(`{"id":"1"}`)}
	if !pending.resolve("corr-1", reply) {
		t.Fatal("resolve should find the registered waiter")
	}

	got := <-wait
	if string(got.Data) != `{"id":"1"}` {
		t.Fatalf("unexpected reply: %s", got.Data)
	}
	if pending.size() != 0 {
		t.Fatalf("waiter should be removed after resolve, %d left", pending.size())
	}
}

func TestLateReplyIsDiscarded(t *testing.T) {
	pending := newPendingReplies()
	pending.register("corr-1")
	pending.cancel("corr-1")

	if pending.resolve("corr-1", contracts.Reply{}) {
		t.Fatal("reply after cancel must find no waiter")
	}
}

func TestDuplicateReplyResolvesOnce(t *testing.T) {
	pending := newPendingReplies()
	pending.register("corr-1")

	if !pending.resolve("corr-1", contracts.Reply{}) {
		t.Fatal("first resolve should succeed")
	}
	if pending.resolve("corr-1", contracts.Reply{}) {
		t.Fatal("second resolve must be a no-op")
	}
}

func TestConcurrentRegisterAndResolve(t *testing.T) {
	pending := newPendingReplies()

	var wg sync.WaitGroup
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	waits := make(map[string]<-chan contracts.Reply, len(ids))

	for _, id := range ids {
		waits[id] = pending.register(id)
	}

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if !pending.resolve(id, contracts.Reply{Data: json.RawMessage(`"` + id + `"`)}) {
				t.Errorf("resolve %s found no waiter", id)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got := <-waits[id]
		if string(got.Data) != `"`+id+`"` {
			t.Fatalf("waiter %s got wrong reply: %s", id, got.Data)
		}
	}
	if pending.size() != 0 {
		t.Fatalf("%d waiters left after all resolved", pending.size())
	}
}
