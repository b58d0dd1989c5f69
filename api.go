/*
	fgblock - a blocklist aggregation tool by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package fgblock

import (
	"context"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/fvbock/endless"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/scraperwall/fgblock/config"
	"github.com/scraperwall/fgblock/data"
	"github.com/scraperwall/fgblock/registry"
	log "github.com/sirupsen/logrus"
)

// API provides the HTTP REST API for fgblock
type API struct {
	runner    *Runner
	router    *gin.Engine
	config    *config.Config
	resources *Resources
	ctx       context.Context
}

// ListInfo describes one published blocklist
type ListInfo struct {
	Name    string `json:"name"`
	Input   string `json:"input"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// Match is a blocklist entry that contains a queried address
type Match struct {
	List    string `json:"list"`
	Entry   string `json:"entry"`
	Comment string `json:"comment,omitempty"`
}

type purger interface {
	Purge(addr netip.Addr) error
}

// NewAPI creates a new REST-API for fgblock. Call Start to serve it
func NewAPI(ctx context.Context, config *config.Config, runner *Runner, resources *Resources) *API {
	if resources == nil {
		resources = &Resources{}
	}

	api := &API{
		config:    config,
		runner:    runner,
		resources: resources,
		ctx:       ctx,
	}
	api.setupRouter()

	return api
}

func (a *API) setupRouter() {
	a.router = gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	a.router.Use(cors.New(corsConfig))

	a.router.GET("/runs/last", a.getLastRun)
	a.router.POST("/runs", a.postRun)
	a.router.GET("/lists", a.getLists)
	a.router.GET("/lists/:name", a.getList)
	a.router.GET("/check/:ip", a.getCheck)
	a.router.GET("/cache", a.getCache)
	a.router.DELETE("/cache/:ip", a.deleteCache)
}

// Handler returns the http.Handler of the API
func (a *API) Handler() http.Handler {
	return a.router
}

// Start serves the API on the configured address
func (a *API) Start() {
	log.Infof("API listening on %s", a.config.APIAddress)

	go func() {
		if err := endless.ListenAndServe(a.config.APIAddress, a.router); err != nil {
			log.Errorf("API server: %s", err)
		}
	}()
}

func (a *API) getLastRun(c *gin.Context) {
	report, ok := a.runner.LastReport()
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "there hasn't been a run yet"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (a *API) postRun(c *gin.Context) {
	if c.Query("wait") == "true" {
		report := a.runner.Run(c.Request.Context(), "api", true)
		c.JSON(http.StatusOK, report)
		return
	}

	go a.runner.Run(a.ctx, "api", true)
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (a *API) outputs() map[string]string {
	outputs := make(map[string]string, len(a.config.InputFiles))
	for _, input := range a.config.InputFiles {
		outputs[filepath.Base(a.config.OutputPath(input))] = input
	}
	return outputs
}

func (a *API) getLists(c *gin.Context) {
	lists := make([]ListInfo, 0, len(a.config.InputFiles))

	for _, input := range a.config.InputFiles {
		path := a.config.OutputPath(input)
		info := ListInfo{
			Name:  filepath.Base(path),
			Input: input,
		}

		entries, err := LoadPrevious(path)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		info.Entries = len(entries)

		if fi, err := os.Stat(path); err == nil {
			info.Bytes = fi.Size()
		}
		lists = append(lists, info)
	}

	c.JSON(http.StatusOK, lists)
}

func (a *API) getList(c *gin.Context) {
	name := c.Param("name")
	input, ok := a.outputs()[name]
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown list"})
		return
	}

	path := a.config.OutputPath(input)
	if _, err := os.Stat(path); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "the list hasn't been written yet"})
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.File(path)
}

func (a *API) getCheck(c *gin.Context) {
	ip, err := netip.ParseAddr(c.Param("ip"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid IP address"})
		return
	}

	matches := make([]Match, 0)
	for _, input := range a.config.InputFiles {
		path := a.config.OutputPath(input)

		entries, err := LoadPrevious(path)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		for literal, comment := range entries {
			e, err := data.ParseEntry(literal)
			if err != nil || !e.Contains(ip) {
				continue
			}
			matches = append(matches, Match{
				List:    filepath.Base(path),
				Entry:   e.String(),
				Comment: comment,
			})
		}
	}

	allowlisted, rule := a.resources.Allowlist.IsAllowlisted(ip)

	c.JSON(http.StatusOK, gin.H{
		"ip":          ip.String(),
		"blocked":     len(matches) > 0,
		"matches":     matches,
		"allowlisted": allowlisted,
		"rule":        rule,
	})
}

func (a *API) getCache(c *gin.Context) {
	if a.resources.Store == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no persistent cache configured"})
		return
	}

	count, err := a.resources.Store.Count([]byte(registry.Namespace), nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": count})
}

func (a *API) deleteCache(c *gin.Context) {
	ip, err := netip.ParseAddr(c.Param("ip"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid IP address"})
		return
	}

	p, ok := a.resources.Lookuper.(purger)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "registry lookups aren't cached"})
		return
	}

	if err := p.Purge(ip); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
