package rpc

import "encoding/json"

// JSONRPCVersion is the protocol version sent with every request
const JSONRPCVersion = "2.0"

// Method names understood by remote-control players
const (
	MethodPing             = "JSONRPC.Ping"
	MethodPlayerOpen       = "Player.Open"
	MethodGetActivePlayers = "Player.GetActivePlayers"
	MethodPlayerStop       = "Player.Stop"
	MethodPlayerPlayPause  = "Player.PlayPause"
)

// Request is a JSON-RPC 2.0 request envelope
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// ErrorObject is the error member of a JSON-RPC response
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Player is one entry of Player.GetActivePlayers
type Player struct {
	PlayerID   int    `json:"playerid"`
	Type       string `json:"type"`
	PlayerType string `json:"playertype,omitempty"`
}

// PlayerSpeed is the result of Player.PlayPause
type PlayerSpeed struct {
	Speed int `json:"speed"`
}

type openParams struct {
	Item openItem `json:"item"`
}

type openItem struct {
	File string `json:"file"`
}

type playerParams struct {
	PlayerID int `json:"playerid"`
}
