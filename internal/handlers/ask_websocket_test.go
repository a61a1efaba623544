package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/models"
	"github.com/khawaidev/fapi/internal/services/browser/browsertest"
)

func dialAsk(t *testing.T, launcher *browsertest.FakeLauncher) *websocket.Conn {
	t.Helper()
	handler := NewAskWebSocketHandler(newTestService(launcher), arbor.NewLogger(), nil)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleAsk))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// readUntilClose collects events until the server closes the connection
func readUntilClose(t *testing.T, conn *websocket.Conn) ([]models.Event, error) {
	t.Helper()
	var events []models.Event
	for {
		var event models.Event
		if err := conn.ReadJSON(&event); err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

func TestAskWebSocket_StreamsEvents(t *testing.T) {
	launcher := answeringLauncher("Benzene ring", "Benzene ring: **c1ccccc1**")
	conn := dialAsk(t, launcher)

	require.NoError(t, conn.WriteJSON(models.AskRequest{Question: "Draw benzene"}))

	events, err := readUntilClose(t, conn)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)

	assert.Equal(t, []models.EventType{
		models.EventReasoning,
		models.EventReasoning,
		models.EventAnswer,
		models.EventStructure,
		models.EventDone,
	}, eventTypes(events))
	assert.Equal(t, "c1ccccc1", events[3].Smiles)
	assert.Equal(t, 1, launcher.Instances()[0].Closes())
}

func TestAskWebSocket_RejectsBlankQuestion(t *testing.T) {
	launcher := answeringLauncher("**C**")
	conn := dialAsk(t, launcher)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"question":"   "}`)))

	events, err := readUntilClose(t, conn)
	assert.Empty(t, events)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "unexpected error: %v", err)
	assert.Equal(t, 0, launcher.Launches())
}

func TestAskWebSocket_RejectsMalformedRequest(t *testing.T) {
	launcher := answeringLauncher("**C**")
	conn := dialAsk(t, launcher)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	_, err := readUntilClose(t, conn)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), "unexpected error: %v", err)
	assert.Equal(t, 0, launcher.Launches())
}

func TestAskWebSocket_ClientDisconnectReleasesSession(t *testing.T) {
	// The answer never completes, so only the disconnect can end the question
	launcher := answeringLauncher("thinking")
	conn := dialAsk(t, launcher)

	require.NoError(t, conn.WriteJSON(models.AskRequest{Question: "q"}))

	var first models.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, models.EventReasoning, first.Type)

	conn.Close()

	require.Eventually(t, func() bool {
		instances := launcher.Instances()
		return len(instances) == 1 && instances[0].Closes() == 1
	}, time.Second, 10*time.Millisecond)
}
