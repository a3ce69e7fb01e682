package httpkit

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP resolves the caller address behind Cloudflare or a proxy chain:
// CF-Connecting-IP first, then the first X-Forwarded-For hop, then gin's view.
func ClientIP(c *gin.Context) string {
	if ip := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}
