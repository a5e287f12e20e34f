package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestDiff(t *testing.T) {
	tests := []struct {
		name string
		old  *State
		new  *State
		want *StateDiff
	}{
		{
			name: "initial load",
			old:  nil,
			new:  &State{SessionID: "u1", Path: "init.init", Data: map[string]string{"nick": "duzhi"}},
			want: &StateDiff{SessionID: "u1", Path: ptr("init.init"), Data: map[string]*string{"nick": ptr("duzhi")}},
		},
		{
			name: "no changes",
			old:  &State{SessionID: "u1", Path: "hall.init", Data: map[string]string{"nick": "duzhi"}},
			new:  &State{SessionID: "u1", Path: "hall.init", Data: map[string]string{"nick": "duzhi"}},
			want: nil,
		},
		{
			name: "moved and forgot",
			old:  &State{SessionID: "u1", Path: "hall.init", Data: map[string]string{"nick": "duzhi", "expect": "sit"}},
			new:  &State{SessionID: "u1", Path: "lobby.init", Data: map[string]string{"nick": "duzhi"}},
			want: &StateDiff{SessionID: "u1", Path: ptr("lobby.init"), Data: map[string]*string{"expect": nil}},
		},
		{
			name: "data only",
			old:  &State{SessionID: "u1", Path: "hall.init"},
			new:  &State{SessionID: "u1", Path: "hall.init", Data: map[string]string{"warp": "maze"}},
			want: &StateDiff{SessionID: "u1", Data: map[string]*string{"warp": ptr("maze")}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(tt.old, tt.new))
		})
	}
}

func TestDiff_JSONDeletion(t *testing.T) {
	d := Diff(
		&State{SessionID: "u1", Path: "a", Data: map[string]string{"nick": "x"}},
		&State{SessionID: "u1", Path: "a"},
	)
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"u1","data":{"nick":null}}`, string(raw))
}

func TestState_VisitAndClone(t *testing.T) {
	s := NewState("u1", "init.init")
	s.Visit("init.init")
	assert.Equal(t, []string{"init.init"}, s.History)

	for i := 0; i < MaxHistory+5; i++ {
		if i%2 == 0 {
			s.Visit("hall.init")
		} else {
			s.Visit("lobby.init")
		}
	}
	assert.Len(t, s.History, MaxHistory)
	assert.Equal(t, "hall.init", s.Path)

	c := s.Clone()
	c.Data["nick"] = "other"
	c.History[0] = "changed"
	assert.NotContains(t, s.Data, "nick")
	assert.NotEqual(t, "changed", s.History[0])
}

func TestReplies_Last(t *testing.T) {
	var r Replies
	reply := ReplyFunc(r.Add)
	for _, s := range []string{"a", "b", "c", "d", "e", "f"} {
		reply(Text(s))
	}
	last := r.Last(5)
	require.Len(t, last, 5)
	assert.Equal(t, "b", last[0].Text)
}
