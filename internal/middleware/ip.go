package middleware

import (
	"net"
	"strings"

	"forum_go/internal/core/config"
	"forum_go/internal/core/logger"
	"forum_go/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// ipChecker IP 检查器，条目支持单个 IP 和 CIDR
type ipChecker struct {
	allowNets []*net.IPNet
	denyNets  []*net.IPNet
	allowSet  map[string]bool
	denySet   map[string]bool
}

func parseIPList(list []string) (nets []*net.IPNet, set map[string]bool) {
	set = make(map[string]bool)
	for _, ip := range list {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(ip); err == nil {
			nets = append(nets, n)
		} else {
			set[ip] = true
		}
	}
	return nets, set
}

// newIPChecker 创建 IP 检查器
func newIPChecker(allow, deny []string) *ipChecker {
	c := &ipChecker{}
	c.allowNets, c.allowSet = parseIPList(allow)
	c.denyNets, c.denySet = parseIPList(deny)
	return c
}

// isLocalIP 本机或内网地址 (IPv4 / IPv6)
func isLocalIP(ipStr string) bool {
	if ipStr == "localhost" {
		return true
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}

func (c *ipChecker) denied(ipStr string, ip net.IP) bool {
	if c.denySet[ipStr] {
		return true
	}
	for _, n := range c.denyNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// isAllowed 黑名单优先，其次本地/内网，最后白名单
func (c *ipChecker) isAllowed(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ipStr == "localhost" && !c.denySet[ipStr]
	}
	if c.denied(ipStr, ip) {
		return false
	}
	if isLocalIP(ipStr) || c.allowSet[ipStr] {
		return true
	}
	for _, n := range c.allowNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// AdminWhitelistMW 管理接口 IP 白名单中间件
// - 自动允许 localhost/127.0.0.1/内网 IP
// - 显式配置的白名单 IP 允许
// - 其他 IP 拒绝
func AdminWhitelistMW(cfg *config.SecurityConfig) gin.HandlerFunc {
	checker := newIPChecker(cfg.AllowIPs, cfg.DenyIPs)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if checker.isAllowed(clientIP) {
			c.Next()
			return
		}

		logger.Warn("admin access denied: IP not in whitelist",
			logger.String("ip", clientIP),
			logger.String("path", c.Request.URL.Path))
		response.Forbidden(c, "access denied: IP not in whitelist")
	}
}
