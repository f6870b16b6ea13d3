package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/models"
	"github.com/snappy-loop/bulletin/internal/services"
	"github.com/vincent-petithory/dataurl"
)

const protocolVersion = "2025-03-26"

// JSON-RPC 2.0 request
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSON-RPC 2.0 response
type jsonRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP initialize result
type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      serverInfo             `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCP tools/list result
type toolsListResult struct {
	Tools      []mcpTool `json:"tools"`
	NextCursor *string   `json:"nextCursor,omitempty"`
}

type mcpTool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	Type       string                `json:"type"`
	Properties map[string]schemaProp `json:"properties"`
	Required   []string              `json:"required,omitempty"`
}

type schemaProp struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// MCP tools/call result
type toolsCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type contentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// bulletinService is the subset of services.BulletinService exposed as tools.
type bulletinService interface {
	GenerateAudio(ctx context.Context, text string) (*services.GeneratedAudio, error)
	GenerateImage(ctx context.Context, text string) (string, error)
	GenerateBulletin(ctx context.Context, req *models.BulletinRequest, progress func(models.Progress)) (*models.Bulletin, error)
}

// Server implements MCP JSON-RPC 2.0 over HTTP (initialize, tools/list and tools/call).
type Server struct {
	bulletins bulletinService
}

// NewServer returns a new MCP server backed by the bulletin service.
func NewServer(bulletins bulletinService) *Server {
	return &Server{bulletins: bulletins}
}

// Handler returns the HTTP handler for JSON-RPC requests.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveJSONRPC)
}

func (s *Server) serveJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, req.ID, -32700, "Parse error")
		return
	}
	if req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, -32600, "Invalid Request")
		return
	}
	if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	var result interface{}
	var rpcErr *rpcError
	switch req.Method {
	case "initialize":
		result = &initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    map[string]interface{}{"tools": map[string]interface{}{}},
			ServerInfo:      serverInfo{Name: "one-minute-bulletin", Version: "1.0.0"},
		}
	case "ping":
		result = map[string]interface{}{}
	case "tools/list":
		result, rpcErr = s.handleToolsList()
	case "tools/call":
		result, rpcErr = s.handleToolsCall(r.Context(), req.Params)
	default:
		writeRPCError(w, req.ID, -32601, "Method not found")
		return
	}

	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handleToolsList() (interface{}, *rpcError) {
	textProp := schemaProp{Type: "string", Description: "Story text of the bulletin"}
	return &toolsListResult{
		Tools: []mcpTool{
			{
				Name:        "generate_audio",
				Description: "Narrate text after the bulletin intro as a WAV track",
				InputSchema: inputSchema{
					Type:       "object",
					Properties: map[string]schemaProp{"text": textProp},
					Required:   []string{"text"},
				},
			},
			{
				Name:        "generate_image",
				Description: "Generate a news bulletin thumbnail for text",
				InputSchema: inputSchema{
					Type:       "object",
					Properties: map[string]schemaProp{"text": textProp},
					Required:   []string{"text"},
				},
			},
			{
				Name:        "generate_bulletin",
				Description: "Generate a full bulletin: intro plus narration and a set of thumbnails",
				InputSchema: inputSchema{
					Type: "object",
					Properties: map[string]schemaProp{
						"text":   textProp,
						"images": {Type: "number", Description: "Number of thumbnails"},
					},
					Required: []string{"text"},
				},
			},
		},
	}, nil
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, paramsRaw json.RawMessage) (interface{}, *rpcError) {
	var params toolsCallParams
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return nil, &rpcError{Code: -32602, Message: "Invalid params"}
	}
	switch params.Name {
	case "generate_audio":
		return s.callGenerateAudio(ctx, params.Arguments)
	case "generate_image":
		return s.callGenerateImage(ctx, params.Arguments)
	case "generate_bulletin":
		return s.callGenerateBulletin(ctx, params.Arguments)
	default:
		return nil, &rpcError{Code: -32602, Message: "Unknown tool: " + params.Name}
	}
}

func getStr(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getNum(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return 0
}

func toolError(err error) *toolsCallResult {
	return &toolsCallResult{
		Content: []contentItem{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}

// mediaItem turns a data URL into an MCP content item of the given type.
func mediaItem(kind, u string) (contentItem, error) {
	du, err := dataurl.DecodeString(u)
	if err != nil {
		return contentItem{}, err
	}
	return contentItem{
		Type:     kind,
		Data:     base64.StdEncoding.EncodeToString(du.Data),
		MimeType: du.MediaType.ContentType(),
	}, nil
}

func (s *Server) callGenerateAudio(ctx context.Context, args map[string]interface{}) (interface{}, *rpcError) {
	audio, err := s.bulletins.GenerateAudio(ctx, getStr(args, "text"))
	if err != nil {
		log.Warn().Err(err).Msg("mcp generate_audio failed")
		return toolError(err), nil
	}
	item, err := mediaItem("audio", audio.URL)
	if err != nil {
		return toolError(err), nil
	}
	return &toolsCallResult{Content: []contentItem{item}}, nil
}

func (s *Server) callGenerateImage(ctx context.Context, args map[string]interface{}) (interface{}, *rpcError) {
	u, err := s.bulletins.GenerateImage(ctx, getStr(args, "text"))
	if err != nil {
		log.Warn().Err(err).Msg("mcp generate_image failed")
		return toolError(err), nil
	}
	item, err := mediaItem("image", u)
	if err != nil {
		return toolError(err), nil
	}
	return &toolsCallResult{Content: []contentItem{item}}, nil
}

func (s *Server) callGenerateBulletin(ctx context.Context, args map[string]interface{}) (interface{}, *rpcError) {
	b, err := s.bulletins.GenerateBulletin(ctx, &models.BulletinRequest{
		Text:   getStr(args, "text"),
		Images: getNum(args, "images"),
	}, nil)
	if err != nil {
		log.Warn().Err(err).Msg("mcp generate_bulletin failed")
		return toolError(err), nil
	}

	summary, _ := json.Marshal(map[string]interface{}{
		"id":          b.ID,
		"duration_ms": b.DurationMs,
		"images":      len(b.ImageURLs),
	})
	content := []contentItem{{Type: "text", Text: string(summary)}}
	item, err := mediaItem("audio", b.AudioURL)
	if err != nil {
		return toolError(err), nil
	}
	content = append(content, item)
	for _, u := range b.ImageURLs {
		item, err := mediaItem("image", u)
		if err != nil {
			return toolError(err), nil
		}
		content = append(content, item)
	}
	return &toolsCallResult{Content: content}, nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
