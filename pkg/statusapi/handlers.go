// Package statusapi exposes a read-only HTTP inspection surface over the
// coordinator's worker registry and container index (adapted from the
// teacher's pkg/api job-submission handlers into a status-only surface,
// since deployment here goes over the wire protocol in pkg/session, not
// HTTP — spec.md §4.1 Non-goals).
package statusapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athulya-anil/distributed-lxc/pkg/containerindex"
	"github.com/athulya-anil/distributed-lxc/pkg/registry"
)

// API wraps the coordinator's core state and provides HTTP handlers.
type API struct {
	Registry *registry.Registry
	Index    *containerindex.Index
}

// New builds an API bound to the coordinator's registry and index.
func New(reg *registry.Registry, idx *containerindex.Index) *API {
	return &API{Registry: reg, Index: idx}
}

// SetupRoutes registers every route on router.
func (a *API) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", a.healthz)
	router.GET("/workers", a.listWorkers)
	router.GET("/workers/:id", a.getWorker)
	router.GET("/containers", a.listContainers)
	router.GET("/containers/:id", a.getContainer)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (a *API) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
}

func (a *API) listWorkers(c *gin.Context) {
	workers := a.Registry.Snapshot()
	c.JSON(http.StatusOK, gin.H{"count": len(workers), "workers": workers})
}

func (a *API) getWorker(c *gin.Context) {
	w, ok := a.Registry.Find(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found"})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (a *API) listContainers(c *gin.Context) {
	containers := a.Index.Snapshot()
	c.JSON(http.StatusOK, gin.H{"count": len(containers), "containers": containers})
}

func (a *API) getContainer(c *gin.Context) {
	container, err := a.Index.Status(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, container)
}
