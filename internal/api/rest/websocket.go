package rest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	app "chip-counter/internal/application"
	"chip-counter/internal/domain/entity"
)

// httpPredictWebsocket counts a live feed one frame at a time. Each binary
// message is an encoded image; a text message may carry a base64 image or a
// data URL. Every frame gets exactly one JSON reply, in order.
func (s *Server) httpPredictWebsocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	s.addConn(conn)
	defer s.removeConn(conn)

	conn.SetReadLimit(s.opts.MaxUploadBytes)
	s.log.Infof("Live feed connected from %v", r.RemoteAddr)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Infof("Live feed disconnected")
			} else {
				s.log.Infof("Live feed closed: %v", err)
			}
			return
		}

		var reply any
		img, err := frameBytes(msgType, data)
		if err == nil {
			var out *app.CountOutput
			out, err = s.counter.Count(r.Context(), app.CountRequest{Image: img, Source: "ws"})
			if err == nil {
				reply = NewPredictResponse(out)
			}
		}
		if err != nil {
			_, msg := statusFor(err)
			reply = ErrorResponse{Error: msg}
		}
		if err := conn.WriteJSON(reply); err != nil {
			s.log.Infof("Live feed write failed: %v", err)
			return
		}
	}
}

// frameBytes extracts the encoded image from a websocket message.
func frameBytes(msgType int, data []byte) ([]byte, error) {
	switch msgType {
	case websocket.BinaryMessage:
		if len(data) == 0 {
			return nil, entity.ErrNoImage
		}
		return data, nil
	case websocket.TextMessage:
		text := strings.TrimSpace(string(data))
		if text == "" {
			return nil, entity.ErrNoImage
		}
		if strings.HasPrefix(text, "data:") {
			comma := strings.IndexByte(text, ',')
			if comma < 0 {
				return nil, fmt.Errorf("%w: malformed data URL", entity.ErrDecodeFailed)
			}
			text = text[comma+1:]
		}
		img, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrDecodeFailed, err)
		}
		return img, nil
	}
	return nil, errors.New("unsupported websocket message type")
}
