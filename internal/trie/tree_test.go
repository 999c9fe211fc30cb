package trie

import (
	"sort"
	"testing"

	"github.com/odin-mesh/routecore/internal/subscription"
	"github.com/odin-mesh/routecore/internal/topic"
)

func mustFilter(t *testing.T, s string) topic.Filter {
	t.Helper()
	f, err := topic.ParseFilter(s)
	if err != nil {
		t.Fatalf("ParseFilter(%q): %v", s, err)
	}
	return f
}

func mustName(t *testing.T, s string) topic.Name {
	t.Helper()
	n, err := topic.ParseName(s)
	if err != nil {
		t.Fatalf("ParseName(%q): %v", s, err)
	}
	return n
}

func clientIDs(subs []subscription.Subscriber) []int {
	ids := make([]int, len(subs))
	for i, s := range subs {
		ids[i] = int(s.ClientID)
	}
	sort.Ints(ids)
	return ids
}

func TestS1Literal(t *testing.T) {
	tree := New()
	tree.Add(mustFilter(t, "home/bedroom/light"), 5, subscription.Level0)

	got := clientIDs(tree.Match(mustName(t, "home/bedroom/light")))
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("got %v, want [5]", got)
	}

	if got := tree.Match(mustName(t, "home/bedroom/fan")); len(got) != 0 {
		t.Fatalf("got %v, want []", got)
	}
}

func TestS2SingleLevelWildcard(t *testing.T) {
	tree := New()
	tree.Add(mustFilter(t, "home/+/+"), 1, subscription.Level0)

	if got := clientIDs(tree.Match(mustName(t, "home/bedroom/light"))); len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
	if got := tree.Match(mustName(t, "home/bedroom")); len(got) != 0 {
		t.Fatalf("got %v, want [] (too few levels)", got)
	}
	if got := tree.Match(mustName(t, "home/bedroom/light/extra")); len(got) != 0 {
		t.Fatalf("got %v, want [] (too many levels)", got)
	}
}

func TestS3MultiLevelWildcard(t *testing.T) {
	tree := New()
	tree.Add(mustFilter(t, "home/#"), 2, subscription.Level0)

	for _, topicStr := range []string{"home", "home/a", "home/a/b/c"} {
		if got := clientIDs(tree.Match(mustName(t, topicStr))); len(got) != 1 || got[0] != 2 {
			t.Fatalf("match(%q) = %v, want [2]", topicStr, got)
		}
	}
	if got := tree.Match(mustName(t, "office/a")); len(got) != 0 {
		t.Fatalf("got %v, want []", got)
	}
}

func TestS4Overlap(t *testing.T) {
	tree := New()
	tree.Add(mustFilter(t, "home/+/+"), 1, subscription.Level0)
	tree.Add(mustFilter(t, "home/#"), 2, subscription.Level0)
	tree.Add(mustFilter(t, "home/+/#"), 3, subscription.Level0)
	tree.Add(mustFilter(t, "home/bedroom/light"), 5, subscription.Level0)

	got := clientIDs(tree.Match(mustName(t, "home/bedroom/light")))
	want := []int{1, 2, 3, 5}
	if !equalInts(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	tree.Remove(mustFilter(t, "home/bedroom/light"), 5)
	got = clientIDs(tree.Match(mustName(t, "home/bedroom/light")))
	want = []int{1, 2, 3}
	if !equalInts(got, want) {
		t.Fatalf("after remove: got %v, want %v", got, want)
	}
}

func TestS5Shared(t *testing.T) {
	tree := New()
	tree.Add(mustFilter(t, "$share/g1/sensors/#"), 10, subscription.Level0)
	tree.Add(mustFilter(t, "$share/g1/sensors/#"), 11, subscription.Level0)

	seen := map[int]int{}
	for i := 0; i < 200; i++ {
		got := tree.Match(mustName(t, "sensors/temp/kitchen"))
		if len(got) != 1 {
			t.Fatalf("got %d subscribers, want exactly 1 per call", len(got))
		}
		seen[int(got[0].ClientID)]++
	}
	if seen[10] == 0 || seen[11] == 0 {
		t.Fatalf("expected roughly uniform distribution over many calls, got %v", seen)
	}
}

func TestS6IdempotentRemove(t *testing.T) {
	tree := New()
	tree.Remove(mustFilter(t, "a/b"), 1)
	if tree.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", tree.SubscriberCount())
	}
	if got := tree.Match(mustName(t, "a/b")); len(got) != 0 {
		t.Fatalf("got %v, want []", got)
	}
}

func TestSubscriberCountInvariant(t *testing.T) {
	tree := New()
	tree.Add(mustFilter(t, "a/b"), 1, subscription.Level0)
	if tree.SubscriberCount() != 1 {
		t.Fatalf("count = %d, want 1", tree.SubscriberCount())
	}
	tree.Remove(mustFilter(t, "a/b"), 99) // absent client, must not decrement
	if tree.SubscriberCount() != 1 {
		t.Fatalf("count = %d after no-op remove, want 1", tree.SubscriberCount())
	}
	tree.Remove(mustFilter(t, "a/b"), 1)
	if tree.SubscriberCount() != 0 {
		t.Fatalf("count = %d after real remove, want 0", tree.SubscriberCount())
	}
}

func TestAddIsIdempotentUpToQoS(t *testing.T) {
	tree := New()
	f := mustFilter(t, "a/b")
	tree.Add(f, 1, subscription.Level0)
	tree.Add(f, 1, subscription.Level2)

	got := tree.Match(mustName(t, "a/b"))
	if len(got) != 1 || got[0].QoS != subscription.Level2 {
		t.Fatalf("got %+v, want single subscriber at Level2", got)
	}
}

func TestEmptyLevelsAreLiterals(t *testing.T) {
	tree := New()
	tree.Add(mustFilter(t, "a//b"), 1, subscription.Level0)
	if got := tree.Match(mustName(t, "a//b")); len(got) != 1 {
		t.Fatalf("got %v, want match on empty middle level", got)
	}
	if got := tree.Match(mustName(t, "a/x/b")); len(got) != 0 {
		t.Fatalf("got %v, want no match when empty level replaced", got)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
