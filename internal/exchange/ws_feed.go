package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/schema"
)

const feedSubscribeID int64 = 1

// WsFeed streams basket component quotes from the exchange's market data
// websocket.
type WsFeed struct {
	wss    *ws.WebSocket
	basket *schema.Basket
}

// NewWsFeed creates a feed client for the given endpoint.
func NewWsFeed(ctx context.Context, url string, basket *schema.Basket) *WsFeed {
	return &WsFeed{
		wss:    ws.New(ctx, url),
		basket: basket,
	}
}

func (repo *WsFeed) Close() {
	repo.wss.Close()
}

// Start opens the websocket and subscribes to every basket component.
func (repo *WsFeed) Start(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	if err := repo.subscribe(ctx); err != nil {
		return errors.Wrap(err, "subscribe components")
	}
	return nil
}

type feedSubscribeRequest struct {
	Method  string   `json:"method"`
	Symbols []string `json:"symbols"`
	ID      int64    `json:"id"`
}

type feedSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func (repo *WsFeed) subscribe(ctx context.Context) error {
	symbols := make([]string, 0, repo.basket.ComponentCount())
	for _, c := range repo.basket.Components() {
		symbols = append(symbols, strings.ToLower(c.Name))
	}

	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := feedSubscribeRequest{
				Method:  "SUBSCRIBE",
				Symbols: symbols,
				ID:      feedSubscribeID,
			}
			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[feedSubscribeResponse](m)
			if !ok || resp.ID != feedSubscribeID {
				return false, nil
			}
			if resp.Result != nil {
				return false, errors.Errorf("subscribe components, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

type feedQuote struct {
	Symbol  string          `json:"symbol"`
	Bid     decimal.Decimal `json:"bid"`
	BidSize decimal.Decimal `json:"bidSize"`
	Ask     decimal.Decimal `json:"ask"`
	AskSize decimal.Decimal `json:"askSize"`
	Last    decimal.Decimal `json:"last"`
}

type feedSnapshot struct {
	EventType string      `json:"e"`
	EventTime int64       `json:"ts"`
	Quotes    []feedQuote `json:"quotes"`
}

// ObserveSnapshots delivers decoded component snapshots until the context
// ends or the caller unsubscribes. Quotes for symbols outside the basket
// are dropped.
func (repo *WsFeed) ObserveSnapshots(ctx context.Context, handler SnapshotHandler) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[feedSnapshot](m)
				if !ok || resp.EventType != "snapshot" {
					continue
				}

				snap, err := repo.decodeSnapshot(resp)
				if err != nil {
					logs.Errorf("decode snapshot, err: %+v", err)
					continue
				}
				handler(snap)
			}
		}
	}()

	return cancel
}

func (repo *WsFeed) decodeSnapshot(raw feedSnapshot) (schema.MarketSnapshot, error) {
	scale := repo.basket.Scale()
	snap := schema.MarketSnapshot{
		TsEvent:    raw.EventTime * int64(time.Millisecond),
		Components: make([]schema.ComponentQuote, 0, len(raw.Quotes)),
	}
	for _, q := range raw.Quotes {
		id, ok := repo.basket.ComponentIDByName(strings.ToUpper(q.Symbol))
		if !ok {
			continue
		}
		bid, err := parseScaled(q.Bid.String(), scale.PriceScale)
		if err != nil {
			return schema.MarketSnapshot{}, errors.Wrap(err, "parse bid").With("symbol", q.Symbol)
		}
		ask, err := parseScaled(q.Ask.String(), scale.PriceScale)
		if err != nil {
			return schema.MarketSnapshot{}, errors.Wrap(err, "parse ask").With("symbol", q.Symbol)
		}
		last, err := parseScaled(q.Last.String(), scale.PriceScale)
		if err != nil {
			return schema.MarketSnapshot{}, errors.Wrap(err, "parse last").With("symbol", q.Symbol)
		}
		bidSize, err := parseScaled(q.BidSize.String(), scale.QuantityScale)
		if err != nil {
			return schema.MarketSnapshot{}, errors.Wrap(err, "parse bid size").With("symbol", q.Symbol)
		}
		askSize, err := parseScaled(q.AskSize.String(), scale.QuantityScale)
		if err != nil {
			return schema.MarketSnapshot{}, errors.Wrap(err, "parse ask size").With("symbol", q.Symbol)
		}
		snap.Components = append(snap.Components, schema.ComponentQuote{
			SymbolID:  id,
			BidPrice:  schema.Price(bid),
			BidSize:   schema.Quantity(bidSize),
			AskPrice:  schema.Price(ask),
			AskSize:   schema.Quantity(askSize),
			LastPrice: schema.Price(last),
		})
	}
	return snap, nil
}

// parseScaled converts a decimal string into a scaled integer, truncating
// digits beyond the scale. An empty or zero string parses to zero.
func parseScaled(s string, scale schema.Scale) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if len(fracPart) > int(scale) {
		fracPart = fracPart[:scale]
	}
	for len(fracPart) < int(scale) {
		fracPart += "0"
	}
	if intPart == "" {
		intPart = "0"
	}
	v, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}
