package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/models"
	"github.com/snappy-loop/bulletin/internal/services"
)

const (
	bulletinsWSReadLimit  = 64 << 10
	bulletinsWSIdle       = 10 * time.Minute
	bulletinsWSWriteLimit = 30 * time.Second
)

var bulletinsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// BulletinsWS handles GET /api/bulletins/ws. Each "generate" message produces
// progress messages followed by one bulletin or error message. Requests on a
// connection are served one at a time; closing the socket cancels the current one.
func (h *Handler) BulletinsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := bulletinsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("bulletins ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(bulletinsWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(bulletinsWSIdle))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(bulletinsWSIdle))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	incoming := make(chan []byte)
	go func() {
		defer cancel()
		defer close(incoming)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Msg("bulletins ws read")
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(bulletinsWSIdle))
			select {
			case incoming <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()

	for raw := range incoming {
		var in models.WSInMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = writeWSJSON(conn, models.WSOutMessage{Type: models.WSTypeError, Error: "invalid JSON: " + err.Error()})
			continue
		}
		if in.Type != models.WSTypeGenerate {
			_ = writeWSJSON(conn, models.WSOutMessage{Type: models.WSTypeError, Error: "expected type: generate"})
			continue
		}

		bulletin, err := h.bulletins.GenerateBulletin(ctx, &models.BulletinRequest{Text: in.Text, Images: in.Images}, func(p models.Progress) {
			if err := writeWSJSON(conn, models.WSOutMessage{Type: models.WSTypeProgress, Progress: &p}); err != nil {
				log.Debug().Err(err).Msg("bulletins ws progress write")
			}
		})
		out := models.WSOutMessage{Type: models.WSTypeBulletin, Bulletin: bulletin}
		if err != nil {
			out = models.WSOutMessage{Type: models.WSTypeError, Error: msgBulletinFailed}
			if services.IsValidation(err) {
				out.Error = validationMessage(err)
			} else {
				log.Error().Err(err).Msg("Error generating bulletin over ws")
			}
		}
		if err := writeWSJSON(conn, out); err != nil {
			log.Debug().Err(err).Msg("bulletins ws write")
			return
		}
	}
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(bulletinsWSWriteLimit))
	return conn.WriteJSON(v)
}
