package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// JSON-RPC structures
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCP structures
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MCP Server
type MCPServer struct {
	apiURL      string
	apiUsername string
	apiPassword string
}

func NewMCPServer() *MCPServer {
	apiURL := os.Getenv("PILLBOT_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	return &MCPServer{
		apiURL:      apiURL,
		apiUsername: os.Getenv("PILLBOT_API_USERNAME"),
		apiPassword: os.Getenv("PILLBOT_API_PASSWORD"),
	}
}

func (s *MCPServer) Run() {
	reader := bufio.NewReader(os.Stdin)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return
			}
			fmt.Fprintf(os.Stderr, "Error reading: %v\n", err)
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing JSON: %v\n", err)
			continue
		}

		response := s.handleRequest(req)
		responseBytes, _ := json.Marshal(response)
		fmt.Println(string(responseBytes))
	}
}

func (s *MCPServer) handleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: nil}
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *MCPServer) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
	result.ServerInfo.Name = "pillbot-mcp"
	result.ServerInfo.Version = "1.0.0"

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *MCPServer) handleToolsList(req JSONRPCRequest) JSONRPCResponse {
	tools := []Tool{
		{
			Name:        "pillbot_parse_prescription",
			Description: "Распарсить текст рецепта без сохранения. Возвращает распознанные лекарства: дозу, частоту, длительность курса, привязку к еде.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text": {Type: "string", Description: "Текст рецепта (русский или английский)"},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "pillbot_add_prescription",
			Description: "Распарсить текст рецепта, сохранить лекарства и запланировать напоминания о приёмах.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text": {Type: "string", Description: "Текст рецепта (русский или английский)"},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "pillbot_list_meds",
			Description: "Получить список сохранённых лекарств с их расписаниями.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        "pillbot_today_schedule",
			Description: "Получить приёмы лекарств на сегодня со статусами (принято, пропущено, ожидается).",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        "pillbot_med_events",
			Description: "Получить все запланированные приёмы конкретного лекарства по его ID.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"plan_id": {Type: "string", Description: "ID лекарства (med-XXXXXXXX)"},
				},
				Required: []string{"plan_id"},
			},
		},
		{
			Name:        "pillbot_mark_taken",
			Description: "Отметить приём лекарства как выполненный по ID события.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"event_id": {Type: "string", Description: "ID события приёма"},
				},
				Required: []string{"event_id"},
			},
		},
		{
			Name:        "pillbot_mark_missed",
			Description: "Отметить приём лекарства как пропущенный по ID события.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"event_id": {Type: "string", Description: "ID события приёма"},
				},
				Required: []string{"event_id"},
			},
		},
		{
			Name:        "pillbot_update_notes",
			Description: "Добавить или заменить заметку к лекарству (побочные эффекты, комментарии врача).",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"plan_id": {Type: "string", Description: "ID лекарства (med-XXXXXXXX)"},
					"notes":   {Type: "string", Description: "Текст заметки"},
				},
				Required: []string{"plan_id", "notes"},
			},
		},
		{
			Name:        "pillbot_delete_med",
			Description: "Удалить лекарство и все его запланированные приёмы по ID.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"plan_id": {Type: "string", Description: "ID лекарства (med-XXXXXXXX)"},
				},
				Required: []string{"plan_id"},
			},
		},
	}

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: tools}}
}

func (s *MCPServer) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: "Invalid params"},
		}
	}

	var result string
	var isError bool

	switch params.Name {
	case "pillbot_parse_prescription":
		result, isError = s.apiPost("/api/parse", params.Arguments)
	case "pillbot_add_prescription":
		result, isError = s.apiPost("/api/plans", params.Arguments)
	case "pillbot_list_meds":
		result, isError = s.apiGet("/api/plans")
	case "pillbot_today_schedule":
		result, isError = s.apiGet("/api/events/today")
	case "pillbot_med_events":
		planID := fmt.Sprintf("%v", params.Arguments["plan_id"])
		result, isError = s.apiGet("/api/plan/" + planID + "/events")
	case "pillbot_mark_taken":
		eventID := fmt.Sprintf("%v", params.Arguments["event_id"])
		result, isError = s.apiPost("/api/event/"+eventID+"/status", map[string]interface{}{"status": "taken"})
	case "pillbot_mark_missed":
		eventID := fmt.Sprintf("%v", params.Arguments["event_id"])
		result, isError = s.apiPost("/api/event/"+eventID+"/status", map[string]interface{}{"status": "missed"})
	case "pillbot_update_notes":
		planID := fmt.Sprintf("%v", params.Arguments["plan_id"])
		result, isError = s.apiPatch("/api/plan/"+planID, map[string]interface{}{"notes": params.Arguments["notes"]})
	case "pillbot_delete_med":
		planID := fmt.Sprintf("%v", params.Arguments["plan_id"])
		result, isError = s.apiDelete("/api/plan/" + planID)
	default:
		result = "Unknown tool: " + params.Name
		isError = true
	}

	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

func (s *MCPServer) apiGet(path string) (string, bool) {
	return s.apiRequest("GET", path, nil)
}

func (s *MCPServer) apiPost(path string, body interface{}) (string, bool) {
	return s.apiRequest("POST", path, body)
}

func (s *MCPServer) apiPatch(path string, body interface{}) (string, bool) {
	return s.apiRequest("PATCH", path, body)
}

func (s *MCPServer) apiDelete(path string) (string, bool) {
	return s.apiRequest("DELETE", path, nil)
}

func (s *MCPServer) apiRequest(method, path string, body interface{}) (string, bool) {
	url := s.apiURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return fmt.Sprintf("Error creating request: %v", err), true
	}

	req.SetBasicAuth(s.apiUsername, s.apiPassword)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error making request: %v", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), true
	}

	// Parse and format the response
	var apiResp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}

	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return string(respBody), resp.StatusCode >= 400
	}

	if !apiResp.Success {
		return fmt.Sprintf("API Error: %s", apiResp.Error), true
	}

	// Pretty print the data
	var prettyData bytes.Buffer
	if err := json.Indent(&prettyData, apiResp.Data, "", "  "); err != nil {
		return string(apiResp.Data), false
	}

	return prettyData.String(), false
}

func main() {
	server := NewMCPServer()
	server.Run()
}
