package exchange

import (
	"context"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/schema"
)

const gatewayAuthID int64 = 1

// WsGateway sends order actions over the exchange's order websocket and
// surfaces acks and fills.
type WsGateway struct {
	wss    *ws.WebSocket
	basket *schema.Basket
	token  string
}

// NewWsGateway creates a gateway client for the given endpoint. The token
// authenticates the trading session.
func NewWsGateway(ctx context.Context, url, token string, basket *schema.Basket) *WsGateway {
	return &WsGateway{
		wss:    ws.New(ctx, url),
		basket: basket,
		token:  token,
	}
}

func (repo *WsGateway) Close() {
	repo.wss.Close()
}

type gatewayAuthRequest struct {
	Method string `json:"method"`
	Token  string `json:"token"`
	ID     int64  `json:"id"`
}

type gatewayAuthResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// Start opens the websocket and authenticates the session.
func (repo *WsGateway) Start(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := gatewayAuthRequest{Method: "AUTH", Token: repo.token, ID: gatewayAuthID}
			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write auth payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[gatewayAuthResponse](m)
			if !ok || resp.ID != gatewayAuthID {
				return false, nil
			}
			if resp.Result != nil {
				return false, errors.Errorf("authenticate, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

type gatewayOrderRequest struct {
	Op      string `json:"op"`
	OrderID uint64 `json:"orderId"`
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Qty     string `json:"qty"`
}

// Send issues one order action, fire-and-forget. The outcome arrives
// asynchronously through ObserveAcks.
func (repo *WsGateway) Send(intent schema.OrderIntent) error {
	req := gatewayOrderRequest{
		OrderID: intent.OrderID,
		Symbol:  repo.basket.ETF(),
	}
	switch intent.Kind {
	case schema.ActionSubmit:
		req.Op = "submit"
	case schema.ActionCancel:
		req.Op = "cancel"
	case schema.ActionAmend:
		req.Op = "amend"
	default:
		return errors.Errorf("unknown intent kind: %d", intent.Kind)
	}
	switch intent.Side {
	case schema.OrderSideBid:
		req.Side = "bid"
	case schema.OrderSideAsk:
		req.Side = "ask"
	}
	if intent.Kind != schema.ActionCancel {
		scale := repo.basket.Scale()
		req.Price = formatScaled(int64(intent.Price), scale.PriceScale)
		req.Qty = formatScaled(int64(intent.Qty), scale.QuantityScale)
	}
	if err := repo.wss.WriteJSON(req); err != nil {
		return errors.Wrap(err, "write order payload").With("orderId", intent.OrderID)
	}
	return nil
}

type gatewayEvent struct {
	EventType string          `json:"e"`
	OrderID   uint64          `json:"orderId"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Qty       decimal.Decimal `json:"qty"`
	Leaves    decimal.Decimal `json:"leaves"`
	Fee       decimal.Decimal `json:"fee"`
}

// ObserveAcks delivers decoded order acknowledgements.
func (repo *WsGateway) ObserveAcks(ctx context.Context, handler AckHandler) (unsubscribe func()) {
	return repo.observe(ctx, "ack", func(ev gatewayEvent) {
		ack, err := repo.decodeAck(ev)
		if err != nil {
			logs.Errorf("decode ack, err: %+v", err)
			return
		}
		handler(ack)
	})
}

// ObserveFills delivers decoded fills.
func (repo *WsGateway) ObserveFills(ctx context.Context, handler FillHandler) (unsubscribe func()) {
	return repo.observe(ctx, "fill", func(ev gatewayEvent) {
		fill, err := repo.decodeFill(ev)
		if err != nil {
			logs.Errorf("decode fill, err: %+v", err)
			return
		}
		handler(fill)
	})
}

func (repo *WsGateway) observe(ctx context.Context, eventType string, handler func(gatewayEvent)) (unsubscribe func()) {
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

				resp, ok := ws.ReadMessage[gatewayEvent](m)
				if !ok || resp.EventType != eventType {
					continue
				}
				handler(resp)
			}
		}
	}()

	return cancel
}

func (repo *WsGateway) decodeAck(ev gatewayEvent) (schema.OrderAck, error) {
	scale := repo.basket.Scale()
	price, err := parseScaled(ev.Price.String(), scale.PriceScale)
	if err != nil {
		return schema.OrderAck{}, errors.Wrap(err, "parse price")
	}
	qty, err := parseScaled(ev.Qty.String(), scale.QuantityScale)
	if err != nil {
		return schema.OrderAck{}, errors.Wrap(err, "parse qty")
	}
	leaves, err := parseScaled(ev.Leaves.String(), scale.QuantityScale)
	if err != nil {
		return schema.OrderAck{}, errors.Wrap(err, "parse leaves")
	}

	ack := schema.OrderAck{
		OrderID:   ev.OrderID,
		Price:     schema.Price(price),
		Qty:       schema.Quantity(qty),
		LeavesQty: schema.Quantity(leaves),
	}
	switch ev.Status {
	case "acked":
		ack.Status = schema.OrderAckStatusAcked
	case "rejected":
		ack.Status = schema.OrderAckStatusRejected
	case "canceled":
		ack.Status = schema.OrderAckStatusCanceled
	case "partFilled":
		ack.Status = schema.OrderAckStatusPartFilled
	case "filled":
		ack.Status = schema.OrderAckStatusFilled
	default:
		ack.Status = schema.OrderAckStatusUnknown
	}
	switch ev.Reason {
	case "":
		ack.Reason = schema.OrderAckReasonNone
	case "rateLimit":
		ack.Reason = schema.OrderAckReasonRateLimit
	case "wouldCross":
		ack.Reason = schema.OrderAckReasonWouldCross
	case "invalidPrice":
		ack.Reason = schema.OrderAckReasonInvalidPrice
	case "invalidQty":
		ack.Reason = schema.OrderAckReasonInvalidQty
	case "unknownOrder":
		ack.Reason = schema.OrderAckReasonUnknownOrder
	default:
		ack.Reason = schema.OrderAckReasonExchangeReject
	}
	return ack, nil
}

func (repo *WsGateway) decodeFill(ev gatewayEvent) (schema.Fill, error) {
	scale := repo.basket.Scale()
	price, err := parseScaled(ev.Price.String(), scale.PriceScale)
	if err != nil {
		return schema.Fill{}, errors.Wrap(err, "parse price")
	}
	qty, err := parseScaled(ev.Qty.String(), scale.QuantityScale)
	if err != nil {
		return schema.Fill{}, errors.Wrap(err, "parse qty")
	}
	fee, err := parseScaled(ev.Fee.String(), scale.PriceScale)
	if err != nil {
		return schema.Fill{}, errors.Wrap(err, "parse fee")
	}

	fill := schema.Fill{
		OrderID: ev.OrderID,
		Price:   schema.Price(price),
		Qty:     schema.Quantity(qty),
		Fee:     schema.Fee(fee),
	}
	switch ev.Side {
	case "bid":
		fill.Side = schema.OrderSideBid
	case "ask":
		fill.Side = schema.OrderSideAsk
	}
	return fill, nil
}

// formatScaled renders a scaled integer as a decimal string.
func formatScaled(v int64, scale schema.Scale) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := []byte{}
	for v > 0 || len(digits) <= int(scale) {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	out := string(digits[:len(digits)-int(scale)])
	if scale > 0 {
		out += "." + string(digits[len(digits)-int(scale):])
	}
	if neg {
		out = "-" + out
	}
	return out
}
