package action

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/slate/internal/events"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
	"github.com/mattjoyce/slate/internal/tracker"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

type fakeHandler struct {
	Base
	accept      bool
	discoverErr error
	items       []protocol.Item
	result      Result
	launchErr   error

	launched []*Context
}

func (f *fakeHandler) Discover(ctx context.Context, actx *Context) (bool, error) {
	return f.accept, f.discoverErr
}

// Interface asks for every item not yet answered.
func (f *fakeHandler) Interface(ctx context.Context, actx *Context) ([]protocol.Item, error) {
	for _, it := range f.items {
		if _, ok := actx.Values[it.Name]; !ok {
			return f.items, nil
		}
	}
	return nil, nil
}

// wizard collects a name on its first page and a frame range on its second.
type wizard struct {
	Base
	interfaceCalls int
	launched       []*Context
}

func (w *wizard) Discover(context.Context, *Context) (bool, error) { return true, nil }

func (w *wizard) Interface(_ context.Context, actx *Context) ([]protocol.Item, error) {
	w.interfaceCalls++
	if _, ok := actx.Value("name"); !ok {
		return []protocol.Item{{Type: "text", Name: "name", Label: "Name"}}, nil
	}
	if _, ok := actx.Value("frames"); !ok {
		return []protocol.Item{{Type: "text", Name: "frames", Label: "Frames"}}, nil
	}
	return nil, nil
}

func (w *wizard) Launch(_ context.Context, actx *Context) (Result, error) {
	w.launched = append(w.launched, actx)
	return Bool(true), nil
}

func (f *fakeHandler) Launch(ctx context.Context, actx *Context) (Result, error) {
	f.launched = append(f.launched, actx)
	return f.result, f.launchErr
}

func newFake(id string) *fakeHandler {
	return &fakeHandler{
		Base:   Base{Desc: Descriptor{Identifier: id, Label: "Fake " + id, Variant: "v1", Description: "does fake things"}},
		accept: true,
		result: Bool(true),
	}
}

func memory() *tracker.Memory {
	return tracker.NewMemory(tracker.Fixture{
		Schemas: []tracker.Schema{
			{ID: "Task", Aliases: []tracker.Alias{{Name: "task"}}},
		},
		Contexts: []tracker.Context{{ID: "t1", Name: "comp", ObjectType: "Task"}},
	})
}

func setup(t *testing.T, handlers ...Handler) (*events.Bus, *tracker.Memory) {
	t.Helper()
	client := memory()
	bus := events.NewBus(nil)
	d := NewDispatcher(bus, client)
	for _, h := range handlers {
		require.NoError(t, d.Register(h))
	}
	return bus, client
}

func selection() []protocol.SelectionReference {
	return []protocol.SelectionReference{{EntityType: "task", EntityID: "t1"}}
}

func TestRegisterValidatesIdentifiers(t *testing.T) {
	d := NewDispatcher(events.NewBus(nil), memory())

	require.NoError(t, d.Register(newFake("a")))
	err := d.Register(newFake("a"))
	assert.True(t, errors.Is(err, ErrDuplicateIdentifier))
	assert.True(t, errors.Is(d.Register(newFake("")), ErrEmptyIdentifier))

	require.NoError(t, d.Register(newFake("b")))
	descs := d.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "a", descs[0].Identifier)
}

func TestDiscoverAdvertises(t *testing.T) {
	yes := newFake("yes")
	no := newFake("no")
	no.accept = false
	broken := newFake("broken")
	broken.discoverErr = errors.New("lookup failed")

	bus, _ := setup(t, yes, no, broken)

	replies, err := bus.Publish(context.Background(), protocol.Event{
		Topic: protocol.TopicDiscover,
		Data:  protocol.EventData{Selection: selection()},
	})
	require.NoError(t, err)

	items := events.Items(replies)
	require.Len(t, items, 1)
	assert.Equal(t, protocol.Item{
		ActionIdentifier: "yes",
		Label:            "Fake yes",
		Variant:          "v1",
		Description:      "does fake things",
	}, items[0])
}

func TestDiscoverUnresolvableSelectionIsSilent(t *testing.T) {
	bus, _ := setup(t, newFake("a"))

	replies, err := bus.Publish(context.Background(), protocol.Event{
		Topic: protocol.TopicDiscover,
		Data: protocol.EventData{Selection: []protocol.SelectionReference{
			{EntityType: "spaceship", EntityID: "x"},
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestLaunchInterfaceRoundTrip(t *testing.T) {
	h := newFake("form")
	h.items = []protocol.Item{{Type: "text", Name: "note", Label: "Note"}}
	bus, client := setup(t, h)

	ev := protocol.Event{
		Topic: protocol.TopicLaunch,
		Data:  protocol.EventData{ActionIdentifier: "form", Selection: selection()},
	}

	// Without values the interface comes back, as many times as asked.
	for i := 0; i < 2; i++ {
		replies, err := bus.Publish(context.Background(), ev)
		require.NoError(t, err)
		require.Len(t, replies, 1)
		assert.False(t, replies[0].IsResult())
		assert.Equal(t, h.items, replies[0].Items)
	}
	assert.Empty(t, h.launched)

	ev.Data.Values = map[string]any{"note": "hello"}
	replies, err := bus.Publish(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Succeeded())
	assert.Equal(t, "Fake form launched successfully.", replies[0].Message)

	require.Len(t, h.launched, 1)
	note, ok := h.launched[0].Value("note")
	assert.True(t, ok)
	assert.Equal(t, "hello", note)
	assert.Equal(t, 1, client.Commits())
}

func TestLaunchWithoutInterfaceRunsImmediately(t *testing.T) {
	h := newFake("direct")
	h.result = Outcome(false, "nothing to do")
	other := newFake("other")
	bus, _ := setup(t, h, other)

	replies, err := bus.Publish(context.Background(), protocol.Event{
		Topic: protocol.TopicLaunch,
		Data:  protocol.EventData{ActionIdentifier: "direct", Selection: selection()},
	})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].IsResult())
	assert.False(t, replies[0].Succeeded())
	assert.Equal(t, "nothing to do", replies[0].Message)

	assert.Len(t, h.launched, 1)
	assert.Empty(t, other.launched)

	entity, ok := h.launched[0].Single()
	require.True(t, ok)
	assert.Equal(t, "Task", entity.Type)
}

func TestLaunchMultiPageInterface(t *testing.T) {
	w := &wizard{Base: Base{Desc: Descriptor{Identifier: "publish", Label: "Publish"}}}
	bus, client := setup(t, w)
	ctx := context.Background()
	ev := protocol.Event{
		Topic: protocol.TopicLaunch,
		Data:  protocol.EventData{ActionIdentifier: "publish", Selection: selection()},
	}

	replies, err := bus.Publish(ctx, ev)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Len(t, replies[0].Items, 1)
	assert.Equal(t, "name", replies[0].Items[0].Name)

	ev.Data.Values = map[string]any{"name": "comp_main"}
	replies, err = bus.Publish(ctx, ev)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.False(t, replies[0].IsResult())
	require.Len(t, replies[0].Items, 1)
	assert.Equal(t, "frames", replies[0].Items[0].Name)
	assert.Empty(t, w.launched)

	ev.Data.Values = map[string]any{"name": "comp_main", "frames": "1001-1100"}
	replies, err = bus.Publish(ctx, ev)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Succeeded())

	assert.Equal(t, 3, w.interfaceCalls)
	require.Len(t, w.launched, 1)
	frames, _ := w.launched[0].Value("frames")
	assert.Equal(t, "1001-1100", frames)
	assert.Equal(t, 1, client.Commits())
}

func TestLaunchAcceptsEmptyExplicitMessage(t *testing.T) {
	h := newFake("quiet")
	h.result = Outcome(true, "")
	bus, client := setup(t, h)

	replies, err := bus.Publish(context.Background(), protocol.Event{
		Topic: protocol.TopicLaunch,
		Data:  protocol.EventData{ActionIdentifier: "quiet", Selection: selection(), Values: map[string]any{}},
	})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Succeeded())
	assert.Empty(t, replies[0].Message)
	assert.Equal(t, 1, client.Commits())
}

func TestLaunchErrorsPropagate(t *testing.T) {
	h := newFake("defect")
	boom := errors.New("unexpected nil")
	h.launchErr = boom
	bus, _ := setup(t, h)

	_, err := bus.Publish(context.Background(), protocol.Event{
		Topic: protocol.TopicLaunch,
		Data:  protocol.EventData{ActionIdentifier: "defect"},
	})
	assert.True(t, errors.Is(err, boom))
}
