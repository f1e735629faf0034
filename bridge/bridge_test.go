package bridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/engine"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/logger"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

type staticConfig struct {
	config *types.ServiceConfig
}

func (s *staticConfig) Load() error                                    { return nil }
func (s *staticConfig) GetConfig() *types.ServiceConfig                { return s.config }
func (s *staticConfig) GetValue(_ string, def interface{}) interface{} { return def }
func (s *staticConfig) GetAs(_ string, _ interface{}) error            { return nil }

var testLocations = []types.Location{
	{ID: 101, Name: "Gilgamesh"},
	{ID: 102, Name: "Cactuar"},
}

func newTestServer(t *testing.T) (*Server, *engine.Serial) {
	t.Helper()

	snapshot := NewSnapshot()
	e := engine.New(nil, types.Policy{ShowFriendsReal: true}, engine.Dependencies{Host: snapshot})
	serial := engine.NewSerial(e)

	server, err := NewServer(context.Background(), &staticConfig{config: &types.ServiceConfig{
		Version: "1.0.0",
		Bridge:  &types.BridgeConfig{Enabled: true, Host: "127.0.0.1"},
	}}, logger.NewNop(), nil, serial, snapshot)
	require.NoError(t, err)

	return server, serial
}

func message(t *testing.T, messageType string, data interface{}) Message {
	t.Helper()

	msg := Message{Type: messageType, ID: messageType + "-1"}
	if data != nil {
		encoded, err := utils.Marshal(data)
		require.NoError(t, err)
		msg.Data = encoded
	}
	return msg
}

func TestNewServerDisabled(t *testing.T) {
	_, err := NewServer(context.Background(), &staticConfig{config: &types.ServiceConfig{
		Bridge: &types.BridgeConfig{Enabled: false},
	}}, logger.NewNop(), nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrBridgeIsDisabled)
}

func TestDispatchUpdatesSnapshotAndEngine(t *testing.T) {
	server, serial := newTestServer(t)
	snapshot := server.Snapshot()

	_, err := server.dispatch(message(t, TypeLocations, LocationsData{Locations: testLocations}))
	require.NoError(t, err)
	assert.Len(t, engine.Value(serial, func(e *engine.Engine) []types.Location { return e.Locations() }), 2)

	_, err = server.dispatch(message(t, TypeZone, ZoneData{Competitive: true, LoggedIn: true}))
	require.NoError(t, err)
	assert.True(t, snapshot.InCompetitiveZone())
	assert.True(t, snapshot.LoggedIn())

	_, err = server.dispatch(message(t, TypeRoster, RosterData{Ready: true, Entries: []types.RosterEntry{
		{Name: "Rhea Starlight", HomeLocationID: 101, StableID: 777},
	}}))
	require.NoError(t, err)
	entries, ready, err := snapshot.Roster()
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Len(t, entries, 1)

	_, err = server.dispatch(message(t, TypeRoster, RosterData{Error: "agent missing"}))
	require.NoError(t, err)
	_, _, err = snapshot.Roster()
	assert.EqualError(t, err, "agent missing")

	_, err = server.dispatch(message(t, TypeSurface, SurfaceData{Name: "FriendList", Open: true, Fragments: []string{"Rhea Starlight", "Gilgamesh"}}))
	require.NoError(t, err)
	fragments, ok := snapshot.TextFragments("FriendList")
	assert.True(t, ok)
	assert.Equal(t, []string{"Rhea Starlight", "Gilgamesh"}, fragments)
	assert.Positive(t, engine.Value(serial, func(e *engine.Engine) int { return e.Status().PendingSeeds }))

	_, err = server.dispatch(message(t, TypeSurfaceEvent, SurfaceEventData{Name: "FriendList", Event: "close"}))
	require.NoError(t, err)
	_, ok = snapshot.TextFragments("FriendList")
	assert.False(t, ok)

	_, err = server.dispatch(message(t, TypeSurfaceEvent, SurfaceEventData{Name: "FriendList", Event: "wiggle"}))
	assert.ErrorIs(t, err, types.ErrBridgeMessageInvalid)

	_, err = server.dispatch(message(t, "teleport", nil))
	assert.ErrorIs(t, err, types.ErrBridgeMessageInvalid)

	_, err = server.dispatch(Message{Type: TypeZone, Data: []byte(`"nope"`)})
	assert.ErrorIs(t, err, types.ErrBridgeMessageInvalid)
}

func TestSnapshotSurfaceTransitions(t *testing.T) {
	snapshot := NewSnapshot()

	assert.True(t, snapshot.SetSurface("FriendList", true, nil))
	assert.False(t, snapshot.SetSurface("FriendList", true, []string{"Rhea"}))
	assert.False(t, snapshot.SetSurface("FriendList", false, nil))
	assert.True(t, snapshot.SetSurface("FriendList", true, nil))

	snapshot.SetZone(false, true)
	snapshot.SetEntities([]types.Entity{{ID: 1, Name: "Rhea"}})
	snapshot.SetZone(false, false)
	assert.Empty(t, snapshot.VisibleEntities())

	snapshot.SetZone(true, true)
	snapshot.Reset()
	assert.False(t, snapshot.InCompetitiveZone())
	_, ok := snapshot.TextFragments("FriendList")
	assert.False(t, ok)
}

func TestWebsocketSession(t *testing.T) {
	server, serial := newTestServer(t)

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + DefaultPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg Message
		require.NoError(t, utils.Unmarshal(data, &msg))
		return msg
	}

	write := func(msg Message) {
		t.Helper()
		data, err := utils.Marshal(msg)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
	}

	hello := read()
	assert.Equal(t, TypeHello, hello.Type)
	assert.Eventually(t, func() bool { return server.Sessions() == 1 }, time.Second, 10*time.Millisecond)

	write(message(t, TypeLocations, LocationsData{Locations: testLocations}))
	write(message(t, TypeZone, ZoneData{Competitive: true, LoggedIn: true}))
	write(message(t, TypeEntities, EntitiesData{Entities: []types.Entity{
		{ID: 1, Name: "Rhea Starlight", StableID: 777, HomeLocationID: 101, Player: true},
	}}))
	write(message(t, TypeContextAdd, ContextAddData{EntityID: 1}))

	reply := read()
	require.Equal(t, TypeResult, reply.Type)
	assert.Equal(t, "context_add-1", reply.ID)

	var result ResultData
	require.NoError(t, utils.Unmarshal(reply.Data, &result))
	assert.True(t, result.OK, result.Error)
	assert.Equal(t, []uint64{777}, engine.Value(serial, func(e *engine.Engine) []uint64 { return e.AllowListIDs() }))

	write(message(t, TypeContextAdd, ContextAddData{EntityID: 42}))
	reply = read()
	require.NoError(t, utils.Unmarshal(reply.Data, &result))
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "entity not found")

	write(message(t, TypeFrame, nil))
	reply = read()
	require.Equal(t, TypeDisplay, reply.Type)

	var display DisplayData
	require.NoError(t, utils.Unmarshal(reply.Data, &display))
	require.Len(t, display.Entities, 1)
	assert.Equal(t, types.DisplayReal, display.Entities[0].Transform.Mode)
	assert.Equal(t, "Rhea Starlight", display.Entities[0].Transform.Text)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	reply = read()
	assert.Equal(t, TypeError, reply.Type)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return server.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, server.Snapshot().LoggedIn())
}

func TestServerLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	require.NoError(t, server.Start())
	assert.True(t, server.IsRunning())
	assert.NotEmpty(t, server.Addr())
	assert.ErrorIs(t, server.Start(), types.ErrServerAlreadyRunning)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+server.Addr()+DefaultPath, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, server.Stop())
	assert.False(t, server.IsRunning())
	assert.ErrorIs(t, server.Stop(), types.ErrServerNotRunning)
}
