package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// signature computes the hex HMAC-SHA256 of the url-encoded request
// parameters, as required by Binance signed endpoints.
func signature(secret, encodedParams string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(encodedParams))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedQuery appends timestamp, recvWindow, and the HMAC signature to the
// given parameters and returns the final encoded query string.
//
// The signature must be computed over the exact encoded form that is sent,
// so the signature parameter is concatenated after encoding rather than
// added to the url.Values set.
func (c *Client) signedQuery(params url.Values) (string, error) {
	if !c.Configured() {
		return "", ErrMissingCredentials
	}

	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	encoded := params.Encode()
	return fmt.Sprintf("%s&signature=%s", encoded, signature(c.cfg.APISecret, encoded)), nil
}
