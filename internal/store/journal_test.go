package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestAppend_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		seq, err := s.Append(ctx, Entry{Kind: "notification", Name: "OnDeviceAdded", At: t0})
		if err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
		if seq <= last {
			t.Fatalf("seq %d not greater than %d", seq, last)
		}
		last = seq
	}
}

func TestAppend_RequiresKind(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.Append(context.Background(), Entry{At: t0}); err == nil {
		t.Error("Append() without kind succeeded")
	}
}

func TestRead_PreservesFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := Entry{
		Token: "run-1",
		Kind:  "notification",
		Name:  "OnPropertyValueChanged",
		Detail: map[string]string{
			"device": "Speakers (Realtek <HD>)",
			"key":    "{9855c4cd-df8c-449c-a181-8191b68bd06c:0}",
		},
		At: t0.Add(1500 * time.Microsecond),
	}
	seq, err := s.Append(ctx, in)
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	got, err := s.Read(ctx, Filter{})
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	in.Seq = seq
	if diff := cmp.Diff([]Entry{in}, got); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestRead_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	fixtures := []Entry{
		{Kind: "notification", Name: "OnDefaultDeviceChanged"},
		{Kind: "reset_scheduled", Name: "DefaultDeviceChange"},
		{Kind: "reset", Token: "a", Name: "DefaultDeviceChange"},
		{Kind: "rebuild_start", Token: "b", Name: "UserRequest"},
		{Kind: "rebuild_step", Token: "b", Name: "1"},
		{Kind: "rebuild_step", Token: "b", Name: "2"},
	}
	for i, e := range fixtures {
		e.At = t0.Add(time.Duration(i) * time.Millisecond)
		if _, err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append(%d) failed: %v", i, err)
		}
	}

	names := func(es []Entry) []string {
		out := []string{}
		for _, e := range es {
			out = append(out, e.Kind+":"+e.Name)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"by kind", Filter{Kind: "rebuild_step"}, []string{"rebuild_step:1", "rebuild_step:2"}},
		{"by token", Filter{Token: "b"}, []string{"rebuild_start:UserRequest", "rebuild_step:1", "rebuild_step:2"}},
		{"after seq", Filter{AfterSeq: 4}, []string{"rebuild_step:1", "rebuild_step:2"}},
		{"limit", Filter{Limit: 2}, []string{"notification:OnDefaultDeviceChanged", "reset_scheduled:DefaultDeviceChange"}},
		{"no match", Filter{Kind: "missing"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Read(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Read() failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, names(got)); diff != "" {
				t.Errorf("Read() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrune_KeepsNewest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := s.Append(ctx, Entry{Kind: "reset", At: t0}); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	removed, err := s.Prune(ctx, 3)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if removed != 7 {
		t.Errorf("Prune() removed %d, want 7", removed)
	}

	got, err := s.Read(ctx, Filter{})
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if len(got) != 3 || got[0].Seq != 8 {
		t.Errorf("after prune got %d entries starting at %d", len(got), got[0].Seq)
	}

	// Sequence numbers continue after a prune.
	seq, err := s.Append(ctx, Entry{Kind: "reset", At: t0})
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if seq != 11 {
		t.Errorf("seq after prune = %d, want 11", seq)
	}
	last, err := s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if last != 11 {
		t.Errorf("LastSeq() = %d, want 11", last)
	}
}

func TestLastSeq_Empty(t *testing.T) {
	s := createTestStore(t)

	last, err := s.LastSeq(context.Background())
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if last != 0 {
		t.Errorf("LastSeq() = %d, want 0", last)
	}
}

func TestMarshalDetail_Deterministic(t *testing.T) {
	a, err := marshalDetail(map[string]string{"b": "2", "a": "<1>"})
	if err != nil {
		t.Fatal(err)
	}
	if a != `{"a":"<1>","b":"2"}` {
		t.Errorf("marshalDetail() = %s", a)
	}

	empty, _ := marshalDetail(nil)
	if empty != "{}" {
		t.Errorf("marshalDetail(nil) = %s", empty)
	}
}
