// Package chainclient is a typed wrapper over an Esplora-style REST API,
// one instance per network, grounded on the request/pacing shape of
// chainntnfs/btcdnotify's rpcclient wrapper but adapted from a persistent
// websocket RPC connection to a plain, rate-paced HTTP client.
package chainclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Default upstream hosts.
const (
	BitcoinBaseURL = "https://blockstream.info/api"
	TestnetBaseURL = "https://mempool.space/testnet/api"
	TapeBaseURL    = "https://tape.rewindbitcoin.com/api"
)

const (
	callTimeout   = 30 * time.Second
	defaultMinGap = 300 * time.Millisecond
	maxAttempts   = uint(3)
)

// ErrTimeout wraps every failure left once a call's attempts are
// exhausted: a missed 30s deadline, a transport error, or a status other
// than 2xx or 404.
var ErrTimeout = fmt.Errorf("chainclient: timeout")

// Client is a per-network Esplora-style REST client. It is not safe for
// concurrent calls against the same network from more than one goroutine:
// the monitor owns one Client per network and never calls it concurrently
// with itself.
type Client struct {
	baseURL    string
	httpClient *http.Client
	minGap     time.Duration
	limiter    *rate.Limiter
}

// New constructs a Client against baseURL with the default 300ms inter-call
// pacing.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: callTimeout},
		minGap:     defaultMinGap,
		limiter:    rate.NewLimiter(rate.Every(defaultMinGap), 1),
	}
}

// WithMinGap overrides the default pacing interval, e.g. for a faster local
// regtest loop in tests.
func (c *Client) WithMinGap(gap time.Duration) *Client {
	c.minGap = gap
	c.limiter = rate.NewLimiter(rate.Every(gap), 1)
	return c
}

// pace blocks the caller until the per-network rate limiter admits the
// next call.
func (c *Client) pace(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// doRequest performs a single paced, retried HTTP GET against path,
// returning the raw response body. A 404 is surfaced to the caller (not
// retried, not an error) so operations that treat 404 as "absent" can do
// so; any other non-2xx status is treated as transient and retried.
func (c *Client) doRequest(ctx context.Context, path string) (body []byte, status int, err error) {
	url := c.baseURL + path

	operation := func() ([]byte, error) {
		if err := c.pace(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		reqCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		status = resp.StatusCode
		if status == http.StatusNotFound {
			return b, backoff.Permanent(errNotFoundMarker)
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("chainclient: %s: status %d: %s", path, status, string(b))
		}

		return b, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithMaxTries(maxAttempts),
		backoff.WithBackOff(&linearBackoff{unit: c.minGap}),
	)

	if err != nil {
		if errors.Is(err, errNotFoundMarker) {
			return nil, http.StatusNotFound, nil
		}
		return nil, status, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return result, status, nil
}

// errNotFoundMarker short-circuits the retry loop for an expected 404.
var errNotFoundMarker = fmt.Errorf("chainclient: not found")

// linearBackoff retries attempt n after n*minGap.
type linearBackoff struct {
	unit time.Duration
	n    int
}

func (l *linearBackoff) NextBackOff() time.Duration {
	l.n++
	return time.Duration(l.n) * l.unit
}

// Reset satisfies backoff.BackOff; attempt numbering restarts per call to
// doRequest since a fresh linearBackoff is constructed each time.
func (l *linearBackoff) Reset() {
	l.n = 0
}

// TipHeight fetches the current chain tip height.
func (c *Client) TipHeight(ctx context.Context) (int64, error) {
	body, _, err := c.doRequest(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(body), 10, 64)
}

// BlockHash fetches the block hash at the given height.
func (c *Client) BlockHash(ctx context.Context, height int64) (string, error) {
	body, _, err := c.doRequest(ctx, fmt.Sprintf("/block-height/%d", height))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// BlockTxids fetches the ordered list of txids in the given block.
func (c *Client) BlockTxids(ctx context.Context, blockHash string) ([]string, error) {
	body, _, err := c.doRequest(ctx, fmt.Sprintf("/block/%s/txids", blockHash))
	if err != nil {
		return nil, err
	}

	var txids []string
	if err := json.Unmarshal(body, &txids); err != nil {
		return nil, fmt.Errorf("chainclient: decode block txids: %w", err)
	}
	return txids, nil
}

// MempoolTxids fetches the full set of mempool txids.
func (c *Client) MempoolTxids(ctx context.Context) (map[string]struct{}, error) {
	body, _, err := c.doRequest(ctx, "/mempool/txids")
	if err != nil {
		return nil, err
	}

	var list []string
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("chainclient: decode mempool txids: %w", err)
	}

	out := make(map[string]struct{}, len(list))
	for _, txid := range list {
		out[txid] = struct{}{}
	}
	return out, nil
}

// TxStatus is the confirmation status of a transaction.
type TxStatus struct {
	Confirmed   bool    `json:"confirmed"`
	BlockHeight *int64  `json:"block_height,omitempty"`
	BlockHash   *string `json:"block_hash,omitempty"`
}

// TxStatus fetches the confirmation status of txid. found is false on a
// 404, which is not treated as an error.
func (c *Client) TxStatus(ctx context.Context, txid string) (status *TxStatus, found bool, err error) {
	body, code, err := c.doRequest(ctx, fmt.Sprintf("/tx/%s/status", txid))
	if err != nil {
		return nil, false, err
	}
	if code == http.StatusNotFound {
		return nil, false, nil
	}

	var s TxStatus
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, false, fmt.Errorf("chainclient: decode tx status: %w", err)
	}
	return &s, true, nil
}

// TxInput is a single transaction input as returned by the esplora tx
// details endpoint.
type TxInput struct {
	Txid string `json:"txid"`
}

// TxOutput is a single transaction output.
type TxOutput struct {
	ScriptPubKey string `json:"scriptpubkey"`
}

// TxDetails is the subset of the esplora transaction representation this
// system needs: its inputs (for spend-proof verification) and outputs (for
// commitment authorization).
type TxDetails struct {
	Txid string     `json:"txid"`
	Vin  []TxInput  `json:"vin"`
	Vout []TxOutput `json:"vout"`
}

// TxDetails fetches the full transaction details for txid. found is false
// on a 404.
func (c *Client) TxDetails(ctx context.Context, txid string) (details *TxDetails, found bool, err error) {
	body, code, err := c.doRequest(ctx, fmt.Sprintf("/tx/%s", txid))
	if err != nil {
		return nil, false, err
	}
	if code == http.StatusNotFound {
		return nil, false, nil
	}

	var d TxDetails
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, false, fmt.Errorf("chainclient: decode tx details: %w", err)
	}
	return &d, true, nil
}
