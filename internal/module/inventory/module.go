package inventory

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type routeRegistrar interface {
	RegisterRoutes(api *gin.RouterGroup)
}

// InventoryModule implements the app.Module interface for every inventory resource.
type InventoryModule struct {
	resources []routeRegistrar
	stats     *StatsHandler
	mapView   *MapHandler
}

// NewModule wires repository, service and handler for each resource on db.
func NewModule(db *gorm.DB) *InventoryModule {
	m := &InventoryModule{stats: &StatsHandler{}, mapView: NewMapHandler(db)}
	addResource(m, db, Locations)
	addResource(m, db, ODCs)
	addResource(m, db, ODPs)
	addResource(m, db, Cables)
	addResource(m, db, JointBoxes)
	addResource(m, db, Clients)
	return m
}

func addResource[E any, P entity[E]](m *InventoryModule, db *gorm.DB, kind Kind[E]) {
	svc := NewService[E, P](NewRepository(db, kind), kind)
	m.resources = append(m.resources, NewHandler(svc, kind))
	m.stats.sources = append(m.stats.sources, statsSource{path: kind.Path, stats: svc.Stats})
}

// RegisterRoutes registers the resource routes plus /stats and /map.
func (m *InventoryModule) RegisterRoutes(api *gin.RouterGroup) {
	for _, r := range m.resources {
		r.RegisterRoutes(api)
	}
	api.GET("/stats", m.stats.Stats)
	api.GET("/map", m.mapView.Map)
}
