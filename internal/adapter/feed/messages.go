package feed

import "encoding/json"

// combinedStreamEnvelope wraps every message on the combined-stream
// connection; data is deferred-parsed once the stream name tells us which
// concrete shape to expect.
type combinedStreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// aggTradeMessage is the raw wire shape of a <symbol>@aggTrade event.
type aggTradeMessage struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   uint64 `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	FirstTradeID uint64 `json:"f"`
	LastTradeID  uint64 `json:"l"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// depthMessage is the raw wire shape of a <symbol>@depth@100ms event.
type depthMessage struct {
	EventType         string      `json:"e"`
	EventTime         int64       `json:"E"`
	TransactionTime   int64       `json:"T"`
	Symbol            string      `json:"s"`
	FirstUpdateID     int64       `json:"U"`
	FinalUpdateID     int64       `json:"u"`
	PrevFinalUpdateID int64       `json:"pu"`
	Bids              [][2]string `json:"b"`
	Asks              [][2]string `json:"a"`
}
