package shipper

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Configuration holds the merged key/value settings for one carrier product.
// Keys are case-sensitive.
type Configuration map[string]string

// Well-known configuration keys shared by all adapters.
const (
	KeyAPIKey      = "api_key"
	KeyAPISecret   = "api_secret"
	KeyAccount     = "account_number"
	KeyBaseURL     = "base_url"
	KeyLabelFormat = "label_format"
	KeyCurrency    = "currency"
	KeySendTimeout = "send_timeout"

	SenderPrefix = "sender_"
)

// MergeConfiguration merges layers in order; later layers override earlier ones.
// Callers pass global defaults, then carrier entries, then type shipment entries.
func MergeConfiguration(layers ...Configuration) Configuration {
	out := make(Configuration)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Get returns the value for key, or def when the key is absent or empty.
func (c Configuration) Get(key, def string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return def
}

// Duration parses key as a Go duration or a number of seconds.
func (c Configuration) Duration(key string, def time.Duration) time.Duration {
	v := c.Get(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// Missing returns the keys that are absent or blank, sorted.
func (c Configuration) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if strings.TrimSpace(c[k]) == "" {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

// Sender builds the sender address from the sender_* keys.
func (c Configuration) Sender() Address {
	return Address{
		Name:         c[SenderPrefix+"name"],
		Company:      c[SenderPrefix+"company"],
		Line1:        c[SenderPrefix+"address1"],
		Line2:        c[SenderPrefix+"address2"],
		City:         c[SenderPrefix+"city"],
		ProvinceCode: c[SenderPrefix+"province"],
		PostalCode:   c[SenderPrefix+"postcode"],
		CountryCode:  c[SenderPrefix+"country"],
		Phone:        c[SenderPrefix+"phone"],
		Email:        c[SenderPrefix+"email"],
	}
}
