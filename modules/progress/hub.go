package progress

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 개발용 - 모든 origin 허용
		return true
	},
}

// JobUpdate - 클라이언트로 푸시되는 작업 진행 메시지
type JobUpdate struct {
	Type            string   `json:"type"` // "job_update"
	JobID           string   `json:"jobId"`
	ProjectID       string   `json:"projectId"`
	Status          string   `json:"status"`
	TotalImages     int      `json:"totalImages,omitempty"`
	CompletedImages int      `json:"completedImages,omitempty"`
	PhotoURLs       []string `json:"photoUrls,omitempty"`
	ErrorMessage    string   `json:"errorMessage,omitempty"`
}

type client struct {
	conn      *websocket.Conn
	projectID string
	userID    string
	send      chan []byte
}

type room struct {
	clients      map[string]*client
	mutex        sync.RWMutex
	lastActivity time.Time
}

// Hub - 프로젝트 단위 진행 상황 브로드캐스트
type Hub struct {
	rooms map[string]*room
	mutex sync.RWMutex
}

var defaultHub = &Hub{
	rooms: make(map[string]*room),
}

// GetHub - 전역 허브 (워커와 HTTP 핸들러가 공유)
func GetHub() *Hub {
	return defaultHub
}

// RegisterRoutes - /ws 엔드포인트 등록
func (h *Hub) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.handleWebSocket)
	log.Println("✅ Progress routes registered: /ws")

	h.startCleanupRoutine()
}

// Broadcast - 프로젝트를 보고 있는 모든 클라이언트에 전송
func (h *Hub) Broadcast(update JobUpdate) {
	update.Type = "job_update"

	payload, err := json.Marshal(update)
	if err != nil {
		log.Printf("⚠️  [Progress] Failed to marshal update: %v", err)
		return
	}

	h.mutex.RLock()
	rm := h.rooms[update.ProjectID]
	h.mutex.RUnlock()

	if rm == nil {
		return
	}

	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	for userID, c := range rm.clients {
		select {
		case c.send <- payload:
		default:
			log.Printf("⚠️  [Progress] Dropping update for slow client %s", userID)
		}
	}
}

func (h *Hub) getOrCreateRoom(projectID string) *room {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	rm, exists := h.rooms[projectID]
	if !exists {
		rm = &room{
			clients:      make(map[string]*client),
			lastActivity: time.Now(),
		}
		h.rooms[projectID] = rm
		log.Printf("✅ [Progress] Created room for project %s (rooms: %d)", projectID, len(h.rooms))
	}
	rm.lastActivity = time.Now()
	return rm
}

// handleWebSocket - GET /ws?project=<id>&user=<id>
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️  [Progress] WebSocket upgrade failed: %v", err)
		return
	}

	projectID := r.URL.Query().Get("project")
	userID := r.URL.Query().Get("user")

	if projectID == "" || userID == "" {
		log.Printf("⚠️  [Progress] Missing project or user parameter")
		conn.Close()
		return
	}

	c := &client{
		conn:      conn,
		projectID: projectID,
		userID:    userID,
		send:      make(chan []byte, 64),
	}

	rm := h.getOrCreateRoom(projectID)

	rm.mutex.Lock()
	if old, exists := rm.clients[userID]; exists {
		close(old.send)
	}
	rm.clients[userID] = c
	count := len(rm.clients)
	rm.mutex.Unlock()

	log.Printf("👤 [Progress] Client %s watching project %s (watchers: %d)", userID, projectID, count)

	go c.writePump()
	go c.readPump(rm)
}

func (c *client) writePump() {
	defer c.conn.Close()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump - 푸시 전용 채널이라 수신 메시지는 버리고 연결 종료만 감지
func (c *client) readPump(rm *room) {
	defer func() {
		rm.removeClient(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️  [Progress] WebSocket error: %v", err)
			}
			return
		}
	}
}

// removeClient - 떠나는 연결만 제거
// 같은 유저가 재접속한 뒤 이전 소켓이 정리될 때 새 연결을 건드리면 안 됨
func (rm *room) removeClient(c *client) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if current, exists := rm.clients[c.userID]; exists && current == c {
		close(c.send)
		delete(rm.clients, c.userID)
		log.Printf("👋 [Progress] Client %s left (remaining: %d)", c.userID, len(rm.clients))
	}
	rm.lastActivity = time.Now()
}

// startCleanupRoutine - 빈 방 주기적 정리
func (h *Hub) startCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			h.cleanupEmptyRooms()
		}
	}()
}

func (h *Hub) cleanupEmptyRooms() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	cleaned := 0
	for projectID, rm := range h.rooms {
		rm.mutex.RLock()
		isEmpty := len(rm.clients) == 0
		stale := time.Since(rm.lastActivity) > 10*time.Minute
		rm.mutex.RUnlock()

		if isEmpty && stale {
			delete(h.rooms, projectID)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Printf("🗑️  [Progress] Cleaned up %d empty rooms (active: %d)", cleaned, len(h.rooms))
	}
}
