// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/hioload-net/control"
)

const yamlContentType = "application/yaml"

// newAdminRouter serves /metrics, /debug/probes and /debug/config.
func newAdminRouter(reg *prometheus.Registry, probes *control.DebugProbes, store *control.ConfigStore) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	router.GET("/debug/probes", func(c *gin.Context) {
		out, err := probes.DumpYAML()
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, yamlContentType, out)
	})
	router.GET("/debug/config", func(c *gin.Context) {
		out, err := store.Snapshot().YAML()
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, yamlContentType, out)
	})
	return router
}
