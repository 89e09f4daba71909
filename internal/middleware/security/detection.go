// Package security holds HTTP hardening middleware: response headers and
// rejection of obvious scanner probes.
package security

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
)

const maxURLLength = 2048

var suspiciousPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"eval(", "javascript:", "<script", "union select",
	"etc/passwd", "cmd.exe",
}

var unusualMethods = map[string]bool{
	"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true,
}

// Detector flags requests that look like vulnerability scans.
type Detector struct {
	suspicious atomic.Int64
	logger     *log.Logger
}

func NewDetector(logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Discard()
	}
	return &Detector{logger: logger.WithComponent(log.ComponentHTTP)}
}

// IsSuspicious inspects the path, query, method and URL length of r.
func (d *Detector) IsSuspicious(r *http.Request) bool {
	if unusualMethods[r.Method] || len(r.URL.String()) > maxURLLength {
		return true
	}
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, p := range suspiciousPatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			return true
		}
	}
	return false
}

// Suspicious returns how many requests have been rejected.
func (d *Detector) Suspicious() int64 {
	return d.suspicious.Load()
}

// Middleware answers suspicious requests with 400 before routing.
func (d *Detector) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.IsSuspicious(c.Request) {
			d.suspicious.Add(1)
			d.logger.WarnContext(c.Request.Context(), "Rejected suspicious request",
				log.FieldMethod, c.Request.Method, log.FieldPath, c.Request.URL.Path, log.FieldClientIP, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		c.Next()
	}
}
