package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"spawnforge.ai/internal/protocol"
)

type fixedSource struct{ msg protocol.StatusMsg }

func (f fixedSource) Status() protocol.StatusMsg { return f.msg }

func TestSnapshotEndpoint(t *testing.T) {
	src := fixedSource{msg: protocol.StatusMsg{CatalogID: "main", QueueDepth: 7, Ready: true}}
	ts := httptest.NewServer(NewServer(src, time.Second, zap.NewNop()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var got protocol.StatusMsg
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.CatalogID != "main" || got.QueueDepth != 7 || !got.Ready {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestWebsocketFeedPushes(t *testing.T) {
	src := fixedSource{msg: protocol.StatusMsg{CatalogID: "main", PlacementsTotal: 3}}
	ts := httptest.NewServer(NewServer(src, 10*time.Millisecond, zap.NewNop()).Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second protocol.StatusMsg
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if first.Type != protocol.TypeStatus || first.ProtocolVersion != protocol.Version {
		t.Fatalf("missing envelope fields: %+v", first)
	}
	if first.PlacementsTotal != 3 || second.PlacementsTotal != 3 {
		t.Fatalf("payload mismatch: %+v / %+v", first, second)
	}
}
