package transfers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/coachpo/spreadscan/errs"
	"github.com/coachpo/spreadscan/internal/schema"
	"github.com/coachpo/spreadscan/internal/venues/rest"
)

const (
	defaultBaseURL   = "https://api.binance.com"
	coinInfoEndpoint = "/sapi/v1/capital/config/getall"
	tradeFeeEndpoint = "/sapi/v1/asset/tradeFee"
	requestTimeout   = 10 * time.Second
)

// Client issues signed reads against binance's SAPI surface. Every request
// carries an HMAC-SHA256 signature over the encoded query plus a millisecond
// timestamp, with the API key in the X-MBX-APIKEY header.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	clock      func() time.Time
}

// ClientOption adjusts optional Client settings.
type ClientOption func(*Client)

// WithBaseURL points the client at an alternate host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithHTTPClient substitutes the transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithClock substitutes the timestamp source.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewClient builds a signed SAPI client for the provided key pair.
func NewClient(creds Credentials, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(creds.Key) == "" || strings.TrimSpace(creds.Secret) == "" {
		return nil, errs.New(string(schema.VenueBinance), errs.CodeAuth,
			errs.WithOp("sapi"),
			errs.WithMessage("api key and secret required"))
	}
	client := &Client{
		baseURL:    defaultBaseURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: requestTimeout},
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type coinInfoResponse struct {
	Coin        string            `json:"coin"`
	NetworkList []networkResponse `json:"networkList"`
}

type networkResponse struct {
	Network        string `json:"network"`
	DepositEnable  bool   `json:"depositEnable"`
	WithdrawEnable bool   `json:"withdrawEnable"`
	WithdrawFee    string `json:"withdrawFee"`
	WithdrawMin    string `json:"withdrawMin"`
	IsDefault      bool   `json:"isDefault"`
}

type tradeFeeResponse struct {
	Symbol          string `json:"symbol"`
	MakerCommission string `json:"makerCommission"`
	TakerCommission string `json:"takerCommission"`
}

// CoinInfo fetches the per-coin network list: deposit and withdrawal
// standing, withdrawal fee, and withdrawal minimum for every network a coin
// settles on.
func (c *Client) CoinInfo(ctx context.Context) ([]CoinInfo, error) {
	var payload []coinInfoResponse
	if err := c.signedGet(ctx, "coin_info", coinInfoEndpoint, nil, &payload); err != nil {
		return nil, err
	}

	coins := make([]CoinInfo, 0, len(payload))
	for _, entry := range payload {
		coin := strings.ToUpper(strings.TrimSpace(entry.Coin))
		if coin == "" {
			continue
		}
		networks := make([]CoinNetwork, 0, len(entry.NetworkList))
		for _, network := range entry.NetworkList {
			code := strings.TrimSpace(network.Network)
			if code == "" {
				continue
			}
			networks = append(networks, CoinNetwork{
				Network:         code,
				DepositEnabled:  network.DepositEnable,
				WithdrawEnabled: network.WithdrawEnable,
				WithdrawFee:     optionalDecimal(network.WithdrawFee),
				WithdrawMin:     optionalDecimal(network.WithdrawMin),
				IsDefault:       network.IsDefault,
			})
		}
		coins = append(coins, CoinInfo{Coin: coin, Networks: networks})
	}
	return coins, nil
}

// TradeFees fetches live maker/taker commissions. An empty symbol returns
// the full symbol list.
func (c *Client) TradeFees(ctx context.Context, symbol string) ([]TradeFee, error) {
	params := url.Values{}
	if trimmed := strings.TrimSpace(symbol); trimmed != "" {
		params.Set("symbol", trimmed)
	}

	var payload []tradeFeeResponse
	if err := c.signedGet(ctx, "trade_fees", tradeFeeEndpoint, params, &payload); err != nil {
		return nil, err
	}

	fees := make([]TradeFee, 0, len(payload))
	for _, entry := range payload {
		name := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if name == "" {
			continue
		}
		maker, err := decimal.NewFromString(strings.TrimSpace(entry.MakerCommission))
		if err != nil {
			continue
		}
		taker, err := decimal.NewFromString(strings.TrimSpace(entry.TakerCommission))
		if err != nil {
			continue
		}
		fees = append(fees, TradeFee{Symbol: name, Maker: maker, Taker: taker})
	}
	return fees, nil
}

func (c *Client) signedGet(ctx context.Context, op, endpoint string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.clock().UTC().UnixMilli(), 10))
	payload := params.Encode()
	params.Set("signature", signPayload(payload, c.creds.Secret))

	fullURL := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return errs.New(string(schema.VenueBinance), errs.CodeInvalid, errs.WithOp(op), errs.WithCause(err))
	}
	req.Header.Set("X-MBX-APIKEY", c.creds.Key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.New(string(schema.VenueBinance), errs.CodeNetwork, errs.WithOp(op), errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return errs.New(string(schema.VenueBinance), rest.CodeForStatus(resp.StatusCode),
			errs.WithOp(op),
			errs.WithHTTP(resp.StatusCode),
			errs.WithRawMessage(strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.New(string(schema.VenueBinance), errs.CodeDecode, errs.WithOp(op), errs.WithCause(err))
	}
	return nil
}

func signPayload(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// optionalDecimal parses a wire decimal that may be absent or malformed.
func optionalDecimal(raw string) decimal.NullDecimal {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.NullDecimal{}
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: value, Valid: true}
}
