package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/models"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	return NewGateway(zap.NewNop().Sugar(), Options{
		PingInterval:   25 * time.Second,
		WriteDeadline:  10 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBufferSize: 8,
	})
}

// drain empties the client's outbound buffer and returns the decoded frames.
func drain(t *testing.T, c *Client) []envelope {
	t.Helper()
	var out []envelope
	for {
		select {
		case b := <-c.send:
			var env envelope
			require.NoError(t, json.Unmarshal(b, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func onlineUsersPayload(t *testing.T, env envelope) []string {
	t.Helper()
	require.Equal(t, EventOnlineUsers, env.Event)
	b, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal(b, &ids))
	return ids
}

func TestGateway_AnnounceFullState(t *testing.T) {
	g := newTestGateway(t)
	a := testClient("c1", "u1")
	b := testClient("c2", "u2")
	g.reg.Register(a)
	g.reg.Register(b)

	delivered := g.Announce()
	assert.Equal(t, 2, delivered)

	for _, c := range []*Client{a, b} {
		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.ElementsMatch(t, []string{"u1", "u2"}, onlineUsersPayload(t, frames[0]))
	}
}

func TestGateway_AnnounceNotDeduplicated(t *testing.T) {
	g := newTestGateway(t)
	a := testClient("c1", "u1")
	g.reg.Register(a)

	g.Announce()
	g.Announce()

	frames := drain(t, a)
	require.Len(t, frames, 2, "two announcements with no registry change send the same payload twice")
	assert.Equal(t, onlineUsersPayload(t, frames[0]), onlineUsersPayload(t, frames[1]))
}

func TestGateway_AnnounceReachesAnonymous(t *testing.T) {
	g := newTestGateway(t)
	authed := testClient("c1", "u1")
	anon := testClient("c2", "")
	g.reg.Register(authed)
	g.reg.Register(anon)

	g.Announce()

	frames := drain(t, anon)
	require.Len(t, frames, 1)
	ids := onlineUsersPayload(t, frames[0])
	assert.ElementsMatch(t, []string{"u1"}, ids, "anonymous connections receive presence but never appear in it")
}

func TestGateway_AnnounceSurvivesFullBuffer(t *testing.T) {
	g := newTestGateway(t)
	stuck := newClient(nil, "c1", "u1", 1)
	require.NoError(t, stuck.Push([]byte("x"))) // fill the buffer
	healthy := testClient("c2", "u2")
	g.reg.Register(stuck)
	g.reg.Register(healthy)

	delivered := g.Announce()

	assert.Equal(t, 1, delivered, "a failed push to one connection must not block the others")
	assert.Len(t, drain(t, healthy), 1)
}

func TestGateway_Relay(t *testing.T) {
	msg := func(recipient string) *models.Message {
		return &models.Message{
			ID:          primitive.NewObjectID(),
			SenderID:    "u1",
			RecipientID: recipient,
			Body:        "hi",
			CreatedAt:   time.Now().UTC(),
		}
	}

	t.Run("recipient online", func(t *testing.T) {
		g := newTestGateway(t)
		sender := testClient("c1", "u1")
		recipient := testClient("c2", "u2")
		g.reg.Register(sender)
		g.reg.Register(recipient)

		m := msg("u2")
		assert.True(t, g.Relay(m))

		frames := drain(t, recipient)
		require.Len(t, frames, 1, "delivery goes to exactly one connection")
		assert.Equal(t, EventNewMessage, frames[0].Event)

		b, err := json.Marshal(frames[0].Data)
		require.NoError(t, err)
		var got models.Message
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, "u1", got.SenderID)
		assert.Equal(t, "u2", got.RecipientID)
		assert.Equal(t, "hi", got.Body)

		assert.Empty(t, drain(t, sender), "sender receives nothing")
	})

	t.Run("recipient offline is a no-op", func(t *testing.T) {
		g := newTestGateway(t)
		sender := testClient("c1", "u1")
		g.reg.Register(sender)

		assert.False(t, g.Relay(msg("u2")))
		assert.Empty(t, drain(t, sender))
	})

	t.Run("anonymous connection is never a relay target", func(t *testing.T) {
		g := newTestGateway(t)
		anon := testClient("c1", "")
		g.reg.Register(anon)

		assert.False(t, g.Relay(msg("")))
		assert.Empty(t, drain(t, anon))
	})

	t.Run("relay goes to latest connection after reconnect", func(t *testing.T) {
		g := newTestGateway(t)
		old := testClient("c1", "u2")
		g.reg.Register(old)
		fresh := testClient("c2", "u2")
		g.reg.Register(fresh)

		assert.True(t, g.Relay(msg("u2")))
		assert.Empty(t, drain(t, old))
		assert.Len(t, drain(t, fresh), 1)
	})
}

// Connect/disconnect scenario from the registry's point of view: presence
// payloads shrink after a disconnect and relays to the departed user no-op.
func TestGateway_DisconnectScenario(t *testing.T) {
	g := newTestGateway(t)
	a := testClient("c1", "u1")
	b := testClient("c2", "u2")
	g.reg.Register(a)
	g.reg.Register(b)
	g.Announce()
	drain(t, a)
	drain(t, b)

	g.reg.Unregister(b)
	b.close()
	g.Announce()

	frames := drain(t, a)
	require.Len(t, frames, 1)
	assert.ElementsMatch(t, []string{"u1"}, onlineUsersPayload(t, frames[0]))

	assert.False(t, g.Relay(&models.Message{
		ID:          primitive.NewObjectID(),
		SenderID:    "u1",
		RecipientID: "u2",
		Body:        "are you there",
	}))
}

func TestClient_PushAfterClose(t *testing.T) {
	c := newClient(nil, "c1", "u1", 8)
	c.close()
	assert.Error(t, c.Push([]byte("late")))
}
