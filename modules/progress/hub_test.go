package progress

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

func newTestHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

func TestRemoveClientIgnoresStaleConnection(t *testing.T) {
	h := newTestHub()
	rm := h.getOrCreateRoom("p1")

	stale := &client{projectID: "p1", userID: "u1", send: make(chan []byte, 1)}
	replacement := &client{projectID: "p1", userID: "u1", send: make(chan []byte, 1)}

	// 재접속 시나리오: 교체된 뒤 이전 소켓이 정리됨
	rm.clients["u1"] = replacement
	rm.removeClient(stale)

	rm.mutex.RLock()
	current := rm.clients["u1"]
	rm.mutex.RUnlock()

	if current != replacement {
		t.Fatalf("stale teardown must not remove the replacement client")
	}

	select {
	case _, ok := <-replacement.send:
		if !ok {
			t.Fatalf("replacement send channel must stay open")
		}
	default:
	}

	// 자기 자신에 대한 제거는 정상 동작
	rm.removeClient(replacement)

	rm.mutex.RLock()
	remaining := len(rm.clients)
	rm.mutex.RUnlock()

	if remaining != 0 {
		t.Fatalf("departing client should be removed, %d left", remaining)
	}
}

func TestReconnectKeepsReceivingBroadcasts(t *testing.T) {
	h := newTestHub()
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.handleWebSocket)

	ts := httptest.NewServer(r)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?project=p1&user=u1"

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("first dial failed: %v", err)
	}
	defer first.Close()

	second, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("second dial failed: %v", err)
	}
	defer second.Close()

	// 이전 소켓의 정리가 끝나길 기다린 뒤 브로드캐스트
	time.Sleep(300 * time.Millisecond)

	h.Broadcast(JobUpdate{
		JobID:     "j1",
		ProjectID: "p1",
		Status:    "processing",
	})

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := second.ReadMessage()
	if err != nil {
		t.Fatalf("reconnected client must keep receiving broadcasts: %v", err)
	}

	var update JobUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		t.Fatalf("invalid broadcast payload: %v", err)
	}
	if update.JobID != "j1" || update.Status != "processing" {
		t.Fatalf("unexpected update: %+v", update)
	}
}
