package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsNewest(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish(ParamProposed, map[string]int{"n": i})
	}

	got := h.Since(0)
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(5), got[2].ID)

	var payload map[string]int
	require.NoError(t, json.Unmarshal(got[2].Data, &payload))
	assert.Equal(t, 4, payload["n"])

	assert.Len(t, h.Since(4), 1)
	assert.Empty(t, h.Since(5))
}

func TestLast(t *testing.T) {
	h := NewHub(2)
	_, ok := h.Last()
	assert.False(t, ok)

	h.Publish(EngineStarted, nil)
	h.Publish(EngineStopped, nil)
	h.Publish(SubsystemDown, map[string]string{"name": "midi"})

	ev, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, SubsystemDown, ev.Type)
}

func TestSubscribeReceivesAndCancelCloses(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()

	h.Publish(SessionChanged, map[string]string{"state": "loaded"})
	ev := <-ch
	assert.Equal(t, SessionChanged, ev.Type)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	h.Publish(SessionChanged, nil)
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	h := NewHub(10)
	_, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < 1000; i++ {
		h.Publish(ParamProposed, nil)
	}
	assert.Len(t, h.Since(0), 10)
}

func TestUnencodableDataBecomesEmptyObject(t *testing.T) {
	h := NewHub(1)
	h.Publish(ParamProposed, make(chan int))
	ev, _ := h.Last()
	assert.JSONEq(t, `{}`, string(ev.Data))
}
