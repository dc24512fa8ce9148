package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func (s *Server) upgradeWebSocket(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// handleDeviceStream pushes a device's reading and alert events over a
// WebSocket connection until the client disconnects.
func (s *Server) handleDeviceStream(conn *websocket.Conn) {
	defer conn.Close()

	deviceID := conn.Query("device_id")
	if deviceID == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("device_id query parameter is required"))
		return
	}

	sub := s.hub.Subscribe(deviceID)
	defer s.hub.Unsubscribe(sub)
	s.log.Debug("websocket stream opened", "device_id", deviceID, "subscriber_id", sub.ID)

	// Drain reads so we notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				s.log.Warn("websocket write failed", "device_id", deviceID, "error", err)
				return
			}
		case <-closed:
			s.log.Debug("websocket stream closed", "device_id", deviceID, "subscriber_id", sub.ID)
			return
		}
	}
}
