package web

import (
	"fmt"
	"log"
	"net/http"

	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewEngine wires the HTTP façade around client.
func NewEngine(conf *util.AppConfig, client *api.Client) *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))
	g.Use(MetricsMiddleware())

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a := g.Group("/api", ViewerMiddleware(client))
	{
		a.GET("/discover", HandleDiscover(client))
		a.GET("/resolve", HandleResolve(client))

		// Stricter limit for mutations: 2 req/sec per IP
		mutationLimiter := NewRateLimiter(rate.Limit(2), 5)
		maxBodySize := MaxBytesMiddleware(16 * 1024)
		a.POST("/follow", RateLimitMiddleware(mutationLimiter), maxBodySize, HandleFollow(client, true))
		a.POST("/unfollow", RateLimitMiddleware(mutationLimiter), maxBodySize, HandleFollow(client, false))
	}

	f := NewFeeds(client, fmt.Sprintf("http://%s:%d", conf.Conf.Host, conf.Conf.HttpPort))

	g.GET("/profile/:username/feed", func(c *gin.Context) {
		rss, err := f.RSS(c.Request.Context(), c.Param("username"))
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": api.ErrorText(err, "Feed unavailable")})
			return
		}
		c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(rss))
	})

	g.GET("/profile/:username/events.ics", func(c *gin.Context) {
		cal, err := f.ICS(c.Request.Context(), c.Param("username"))
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": api.ErrorText(err, "Calendar unavailable")})
			return
		}
		c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(cal))
	})

	return g
}

func Router(conf *util.AppConfig, client *api.Client) error {
	log.Printf("Starting HTTP server on %s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	g := NewEngine(conf, client)
	err := g.Run(fmt.Sprintf(":%d", conf.Conf.HttpPort))
	if err != nil {
		return err
	}
	return nil
}
