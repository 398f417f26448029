package api

const (
	pathTicker24h  = "/api/v3/ticker/24hr"
	pathServerTime = "/api/v3/time"
)

// ServerTimeResponse from GET /api/v3/time
type ServerTimeResponse struct {
	ServerTime int64 `json:"serverTime"` // Unix milliseconds
}

// errorBody is the exchange's error payload, e.g. {"code":-1003,"msg":"Too many requests."}
type errorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
