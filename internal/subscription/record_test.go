package subscription

import "testing"

func TestRecordAddRemoveClient(t *testing.T) {
	r := NewRecord()
	r.AddClient(1, Level0)
	r.AddClient(2, Level1)
	r.AddClient(1, Level2) // resubscribe updates QoS, not a duplicate

	out := r.Collect(nil)
	if len(out) != 2 {
		t.Fatalf("got %d subscribers, want 2 (resubscribe must not duplicate)", len(out))
	}

	var qosFor1 QoS
	found := false
	for _, s := range out {
		if s.ClientID == 1 {
			qosFor1 = s.QoS
			found = true
		}
	}
	if !found || qosFor1 != Level2 {
		t.Fatalf("client 1 QoS = %v (found=%v), want Level2", qosFor1, found)
	}

	if removed := r.RemoveClient(1); !removed {
		t.Fatalf("RemoveClient(1) should report removed")
	}
	if removed := r.RemoveClient(1); removed {
		t.Fatalf("RemoveClient(1) twice should be a no-op")
	}
	if len(r.Collect(nil)) != 1 {
		t.Fatalf("expected 1 subscriber left after removing client 1")
	}
}

func TestRecordSharedGroup(t *testing.T) {
	r := NewRecord()
	r.AddShared(10, Level0, "g1")
	r.AddShared(11, Level0, "g1")

	seen := map[ClientID]int{}
	for i := 0; i < 200; i++ {
		out := r.Collect(nil)
		if len(out) != 1 {
			t.Fatalf("expected exactly 1 subscriber from shared group per call, got %d", len(out))
		}
		seen[out[0].ClientID]++
	}
	if seen[10] == 0 || seen[11] == 0 {
		t.Fatalf("expected both group members to be selected over many calls, got %v", seen)
	}

	if removed := r.RemoveShared(10, "g1"); !removed {
		t.Fatalf("RemoveShared(10) should report removed")
	}
	out := r.Collect(nil)
	if len(out) != 1 || out[0].ClientID != 11 {
		t.Fatalf("after removing client 10, only 11 should remain, got %v", out)
	}
}

func TestRecordEmptyGroupContributesNothing(t *testing.T) {
	r := NewRecord()
	r.AddShared(1, Level0, "g1")
	r.RemoveShared(1, "g1")
	if out := r.Collect(nil); len(out) != 0 {
		t.Fatalf("empty group should contribute nothing, got %v", out)
	}
}

func TestRecordCloneIsIndependent(t *testing.T) {
	r := NewRecord()
	r.AddClient(1, Level0)
	r.AddShared(2, Level1, "g1")

	clone := r.Clone()
	clone.AddClient(3, Level0)
	clone.AddShared(4, Level0, "g1")

	if len(r.Collect(nil)) != 2 {
		t.Fatalf("mutating clone must not affect original")
	}
	if len(clone.Collect(nil)) != 3 {
		t.Fatalf("clone should have its own independent state")
	}
}
