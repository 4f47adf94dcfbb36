package service

import (
	"testing"

	"predmaint/internal/model"

	"github.com/stretchr/testify/require"
)

func TestBroadcasterDeliversToRunSubscribers(t *testing.T) {
	b := NewProgressBroadcaster()

	ch, cancel := b.Subscribe("run-1")
	defer cancel()

	otherCh, otherCancel := b.Subscribe("run-2")
	defer otherCancel()

	b.Publish(model.RunProgress{RunID: "run-1", Status: model.RunStatusRunning, MachinesDone: 1})

	frame := <-ch
	require.Equal(t, "run-1", frame.RunID)
	require.Equal(t, 1, frame.MachinesDone)

	// The other run's subscriber sees nothing.
	select {
	case f := <-otherCh:
		t.Fatalf("unexpected frame for run-2: %+v", f)
	default:
	}
}

func TestBroadcasterPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewProgressBroadcaster()
	b.Publish(model.RunProgress{RunID: "nobody-listening"})
}

func TestBroadcasterDropsFramesForSlowSubscriber(t *testing.T) {
	b := NewProgressBroadcaster()

	ch, cancel := b.Subscribe("run-1")
	defer cancel()

	// Publish past the buffer without draining; Publish must never block.
	for i := 0; i < subscriberBuffer*2; i++ {
		b.Publish(model.RunProgress{RunID: "run-1", MachinesDone: i + 1})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	require.Equal(t, subscriberBuffer, received)
}

func TestBroadcasterCancelClosesChannel(t *testing.T) {
	b := NewProgressBroadcaster()

	ch, cancel := b.Subscribe("run-1")
	cancel()

	_, open := <-ch
	require.False(t, open)
	require.Zero(t, b.SubscriberCount("run-1"))

	// A second cancel is a harmless no-op.
	cancel()

	// Publishing after cancel must not panic on the closed channel.
	b.Publish(model.RunProgress{RunID: "run-1"})
}

func TestBroadcasterIndependentSubscribersEachReceive(t *testing.T) {
	b := NewProgressBroadcaster()

	first, cancelFirst := b.Subscribe("run-1")
	second, cancelSecond := b.Subscribe("run-1")
	defer cancelFirst()
	defer cancelSecond()

	require.Equal(t, 2, b.SubscriberCount("run-1"))

	b.Publish(model.RunProgress{RunID: "run-1", MachinesDone: 7})

	require.Equal(t, 7, (<-first).MachinesDone)
	require.Equal(t, 7, (<-second).MachinesDone)
}
