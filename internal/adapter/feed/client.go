package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/20hyo/rusto/internal/domain"
)

// Handlers receives normalized events parsed off the wire.
type Handlers struct {
	OnTrade func(domain.NormalizedTrade)
	OnDepth func(domain.DepthUpdate)
}

// Feed is a reconnecting websocket client for the exchange's combined
// aggTrade/depth stream.
type Feed struct {
	cfg      Config
	handlers Handlers
	logger   *zerolog.Logger
}

// New creates a Feed from cfg, invoking handlers for every parsed message.
func New(cfg Config, handlers Handlers, logger *zerolog.Logger) *Feed {
	return &Feed{cfg: cfg, handlers: handlers, logger: logger}
}

// Run connects and reads until ctx is cancelled, reconnecting after
// cfg.ReconnectDelay on any dial or read error.
func (f *Feed) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := f.connectAndRead(ctx); err != nil && f.logger != nil {
			f.logger.Error().Err(err).Msg("websocket feed disconnected")
		}
		if ctx.Err() != nil {
			return
		}
		if f.logger != nil {
			f.logger.Warn().Dur("delay", f.cfg.ReconnectDelay).Msg("reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.cfg.ReconnectDelay):
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	url := f.cfg.buildURL()
	if f.logger != nil {
		f.logger.Info().Str("url", url).Msg("connecting to websocket feed")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-closed:
		}
	}()
	defer close(closed)

	if f.logger != nil {
		f.logger.Info().Msg("connected to websocket feed")
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleMessage(message)
	}
}

func (f *Feed) handleMessage(raw []byte) {
	var envelope combinedStreamEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if f.logger != nil {
			f.logger.Warn().Err(err).Msg("failed to parse combined stream envelope")
		}
		return
	}

	switch {
	case strings.Contains(envelope.Stream, "aggTrade"):
		f.handleAggTrade(envelope.Data)
	case strings.Contains(envelope.Stream, "depth"):
		f.handleDepth(envelope.Data)
	}
}

func (f *Feed) handleAggTrade(data json.RawMessage) {
	var msg aggTradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		if f.logger != nil {
			f.logger.Warn().Err(err).Msg("failed to parse aggTrade")
		}
		return
	}

	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return
	}
	quantity, err := decimal.NewFromString(msg.Quantity)
	if err != nil {
		return
	}

	// is_buyer_maker=true means the buyer was the resting order, so the
	// aggressor that crossed the spread was the seller.
	side := domain.Buy
	if msg.IsBuyerMaker {
		side = domain.Sell
	}

	if f.handlers.OnTrade != nil {
		f.handlers.OnTrade(domain.NormalizedTrade{
			Symbol:    strings.ToLower(msg.Symbol),
			Price:     price,
			Quantity:  quantity,
			Side:      side,
			Timestamp: millisToTime(msg.TradeTime),
			TradeID:   msg.AggTradeID,
		})
	}
}

func (f *Feed) handleDepth(data json.RawMessage) {
	var msg depthMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		if f.logger != nil {
			f.logger.Warn().Err(err).Msg("failed to parse depth update")
		}
		return
	}

	if f.handlers.OnDepth != nil {
		f.handlers.OnDepth(domain.DepthUpdate{
			Symbol:    strings.ToLower(msg.Symbol),
			Bids:      parseLevels(msg.Bids),
			Asks:      parseLevels(msg.Asks),
			Timestamp: millisToTime(msg.EventTime),
		})
	}
}

func parseLevels(raw [][2]string) []domain.DepthLevel {
	levels := make([]domain.DepthLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}
		quantity, err := decimal.NewFromString(pair[1])
		if err != nil {
			continue
		}
		levels = append(levels, domain.DepthLevel{Price: price, Quantity: quantity})
	}
	return levels
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
