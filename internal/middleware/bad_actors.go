package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

var badPaths = []string{
	".env", "php", "mysql", "admin", "cgi-bin", "index.jsp",
	"powershell", "actuator", "wp-login.php", "wp-admin", "xmlrpc.php",
	"config.php", "passwd", "shadow", "backup", "secret",
	"bin/bash", "bin/sh", "cmd.exe", "shell", "exec",
	"ftp", "tftp", "smb", "rpcbind", "tomcat", "manager/html", "web-console",
}

func BlockBadActorsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestPath := c.Request.URL.Path

		for _, path := range badPaths {
			if strings.Contains(requestPath, path) {
				c.JSON(403, gin.H{"error": "Forbidden"})
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
