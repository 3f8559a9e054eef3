package redis

import "strings"

// Every key lives under the stallmarket namespace:
//
//	stallmarket:idempotency:<scope>:<key>   replayable HTTP responses
//	stallmarket:rate_limit:<scope>          redis_rate buckets
//	stallmarket:lock:<parts...>             cart and cron leases
//	stallmarket:cart_merge:<session>        guest cart merged for a session
//	stallmarket:orders:<id>:messages        order chat channel
const keyNamespace = "stallmarket"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	lockPrefix        = "lock"
	cartMergePrefix   = "cart_merge"
	ordersPrefix      = "orders"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

func (c *Client) LockKey(parts ...string) string {
	return buildKey(append([]string{lockPrefix}, parts...)...)
}

func (c *Client) CartMergeKey(sessionID string) string {
	return buildKey(cartMergePrefix, sessionID)
}

func (c *Client) OrderMessagesChannel(orderID string) string {
	return buildKey(ordersPrefix, orderID, "messages")
}

// buildKey joins non-blank parts under the namespace.
func buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
