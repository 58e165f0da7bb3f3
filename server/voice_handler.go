package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"MelodyMind/core/inference"
	"MelodyMind/core/voice"
	"MelodyMind/logger"
)

const (
	// WebSocket 配置
	writeWait      = 30 * time.Second    // 写入超时
	pongWait       = 60 * time.Second    // 等待 pong 响应超时
	pingPeriod     = (pongWait * 9) / 10 // ping 间隔 (必须小于 pongWait)
	maxMessageSize = 8192                // 最大消息大小

	analyzeTimeout = 30 * time.Second
)

// VoiceCommandRequest is the body of POST /voice/command.
type VoiceCommandRequest struct {
	Text string `json:"text" validate:"required"`
}

// VoiceAnalyzeRequest is the body of POST /voice/analyze.
type VoiceAnalyzeRequest struct {
	Transcript string `json:"transcript" validate:"required"`
}

type voiceMood struct {
	MoodLabel  string   `json:"mood_label"`
	Intensity  float64  `json:"intensity"`
	Confidence *float64 `json:"confidence"`
	RawScore   float64  `json:"raw_score"`
}

type voiceResponse struct {
	Success bool          `json:"success"`
	Command voice.Command `json:"command"`
	Mood    *voiceMood    `json:"mood"`
}

func toVoiceMood(res *inference.Result) *voiceMood {
	return &voiceMood{
		MoodLabel:  string(res.Label),
		Intensity:  res.Intensity,
		Confidence: res.Confidence,
		RawScore:   res.RawScore,
	}
}

// interpret 解析指令并检测文本情绪
func (h *APIHandler) interpret(ctx context.Context, text string) (*voiceResponse, error) {
	cmd := voice.Parse(text)
	res, err := h.Inference.Text.AnalyzeText(ctx, text, nil)
	if err != nil {
		return nil, err
	}
	return &voiceResponse{Success: true, Command: cmd, Mood: toVoiceMood(res)}, nil
}

// VoiceCommandHandler parses a spoken command and its mood.
func (h *APIHandler) VoiceCommandHandler(w http.ResponseWriter, r *http.Request) {
	var req VoiceCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.interpret(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// VoiceAnalyzeHandler is VoiceCommandHandler for a full transcript.
func (h *APIHandler) VoiceAnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req VoiceAnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.interpret(r.Context(), req.Transcript)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// voiceWSMessage 客户端发来的消息
type voiceWSMessage struct {
	Text string `json:"text"`
}

type voiceWSReply struct {
	Type    string        `json:"type"` // "command" or "error"
	Command voice.Command `json:"command"`
	Mood    *voiceMood    `json:"mood,omitempty"`
	Message string        `json:"message,omitempty"`
}

// wsConn serializes writers; gorilla allows only one at a time.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

// VoiceWebSocketHandler keeps a live command channel open. Every text
// message is parsed and answered with the command and detected mood.
func (h *APIHandler) VoiceWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	// 浏览器 WebSocket 无法设置 Header，token 走查询参数
	token := r.URL.Query().Get("token")
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "Token required")
		return
	}
	claims, err := h.Tokens.ParseToken(token)
	if err != nil {
		logger.Warn("[Voice] invalid WebSocket token", logger.ErrorField(err))
		writeMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	userID := claims.UserID

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[Voice] failed to upgrade WebSocket",
			logger.String("userId", userID),
			logger.ErrorField(err))
		return
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	logger.Info("[Voice] WebSocket connected", logger.String("userId", userID))

	done := make(chan struct{})
	go pingLoop(conn, done)
	defer close(done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn("[Voice] WebSocket unexpected close",
					logger.String("userId", userID),
					logger.ErrorField(err))
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg voiceWSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			_ = conn.send(voiceWSReply{Type: "error", Message: "Invalid message format"})
			continue
		}
		if msg.Text == "" {
			_ = conn.send(voiceWSReply{Type: "error", Message: "text required"})
			continue
		}

		ctx, cancel := context.WithTimeout(r.Context(), analyzeTimeout)
		resp, err := h.interpret(ctx, msg.Text)
		cancel()
		reply := voiceWSReply{Type: "command"}
		if err != nil {
			logger.Warn("[Voice] analyze failed", logger.String("userId", userID), logger.ErrorField(err))
			reply = voiceWSReply{Type: "error", Command: voice.Parse(msg.Text), Message: err.Error()}
		} else {
			reply.Command = resp.Command
			reply.Mood = resp.Mood
		}
		if err := conn.send(reply); err != nil {
			logger.Warn("[Voice] write failed", logger.String("userId", userID), logger.ErrorField(err))
			break
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func pingLoop(conn *wsConn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			conn.mu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
