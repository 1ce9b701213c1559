package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event 表级变更通知，前端据此刷新列表（对应原型的 realtime channel）
type Event struct {
	Table  string `json:"table"`  // items | borrowing_requests
	Action string `json:"action"` // insert | update | delete
	ID     string `json:"id"`
}

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Event
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Event, 64),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.Clients[client] = true
			h.mu.Unlock()
		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
		case evt := <-h.Broadcast:
			b, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.Clients {
				select {
				case client.Send <- b:
				default:
					// 写不进去的慢客户端直接踢掉
					delete(h.Clients, client)
					close(client.Send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish 非阻塞；hub 满了就丢，刷新类通知丢了无所谓
func (h *Hub) Publish(evt Event) {
	select {
	case h.Broadcast <- evt:
	default:
	}
}

// ServeWS 升级连接并接管读写
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}
	client := &Client{Conn: conn, Send: make(chan []byte, 16)}
	h.Register <- client

	go func() {
		for msg := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		conn.Close()
	}()

	// 只读取以感知断开，客户端不需要发消息
	go func() {
		defer func() { h.Unregister <- client }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
