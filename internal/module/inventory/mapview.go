package inventory

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/geo"
	"github.com/simp-lee/ftthadmin/internal/pkg"
)

// MapNode is a plotted network element.
type MapNode struct {
	geo.Point
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	Status   string `json:"status"`
	ParentID string `json:"parent_id,omitempty"`
	// FeedLengthM is the straight-line route ODC → ODP → client, set on clients only.
	FeedLengthM float64 `json:"feed_length_m,omitempty"`
}

// MapLink is a drop or feeder drawn between two nodes.
type MapLink struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Kind      string    `json:"kind"`
	DistanceM float64   `json:"distance_m"`
	LabelAt   geo.Point `json:"label_at"`
}

// MapView is the body of GET /map.
type MapView struct {
	Nodes []MapNode `json:"nodes"`
	Links []MapLink `json:"links"`
}

// Link kinds.
const (
	LinkFeeder = "feeder" // ODC → ODP
	LinkDrop   = "drop"   // ODP → client
)

// BuildMap lays out ODCs, ODPs and clients that carry coordinates and links
// every child to its parent when both ends are plotted.
func BuildMap(odcs []domain.ODC, odps []domain.ODP, clients []domain.Client) MapView {
	view := MapView{Nodes: []MapNode{}, Links: []MapLink{}}
	points := make(map[string]geo.Point)

	for _, o := range odcs {
		p := point(o.Coordinates)
		if !p.Valid() {
			continue
		}
		points[o.ID] = p
		view.Nodes = append(view.Nodes, MapNode{Point: p, ID: o.ID, Kind: "odc", Label: o.Code, Status: o.Status})
	}

	feeders := make(map[string]string) // odp id → odc id
	for _, o := range odps {
		p := point(o.Coordinates)
		if !p.Valid() {
			continue
		}
		points[o.ID] = p
		view.Nodes = append(view.Nodes, MapNode{Point: p, ID: o.ID, Kind: "odp", Label: o.Code, Status: o.Status, ParentID: o.ODCID})
		if parent, ok := points[o.ODCID]; ok {
			feeders[o.ID] = o.ODCID
			view.Links = append(view.Links, link(o.ODCID, o.ID, LinkFeeder, parent, p))
		}
	}

	for _, cl := range clients {
		p := point(cl.Coordinates)
		if !p.Valid() {
			continue
		}
		node := MapNode{Point: p, ID: cl.ID, Kind: "client", Label: cl.Name, Status: cl.Status, ParentID: cl.ODPID}
		if odp, ok := points[cl.ODPID]; ok {
			view.Links = append(view.Links, link(cl.ODPID, cl.ID, LinkDrop, odp, p))
			route := []geo.Point{odp, p}
			if odc, ok := feeders[cl.ODPID]; ok {
				route = append([]geo.Point{points[odc]}, route...)
			}
			node.FeedLengthM = geo.PolylineLength(route...)
		}
		view.Nodes = append(view.Nodes, node)
	}

	return view
}

func point(c domain.Coordinates) geo.Point {
	return geo.Point{Lat: c.Latitude, Lng: c.Longitude}
}

func link(from, to, kind string, a, b geo.Point) MapLink {
	return MapLink{From: from, To: to, Kind: kind, DistanceM: geo.Distance(a, b), LabelAt: geo.Midpoint(a, b)}
}

// MapHandler serves GET /map from the live (not deleted) network elements.
type MapHandler struct {
	db *gorm.DB
}

// NewMapHandler creates a MapHandler.
func NewMapHandler(db *gorm.DB) *MapHandler {
	return &MapHandler{db: db}
}

// Map handles GET /map. An optional odc_id narrows the view to one cabinet
// and everything it feeds.
func (h *MapHandler) Map(c *gin.Context) {
	odcs, odps, clients, err := h.load(c.Request.Context(), c.Query("odc_id"))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, BuildMap(odcs, odps, clients))
}

func (h *MapHandler) load(ctx context.Context, odcID string) ([]domain.ODC, []domain.ODP, []domain.Client, error) {
	db := h.db.WithContext(ctx)
	live := func(db *gorm.DB) *gorm.DB { return db.Where("deleted_at IS NULL") }

	var odcs []domain.ODC
	q := db.Scopes(live)
	if odcID != "" {
		q = q.Where("id = ?", odcID)
	}
	if err := q.Order("code").Find(&odcs).Error; err != nil {
		return nil, nil, nil, pkg.MapDBError(err)
	}

	var odps []domain.ODP
	q = db.Scopes(live)
	if odcID != "" {
		q = q.Where("odc_id = ?", odcID)
	}
	if err := q.Order("code").Find(&odps).Error; err != nil {
		return nil, nil, nil, pkg.MapDBError(err)
	}

	var clients []domain.Client
	q = db.Scopes(live)
	if odcID != "" {
		q = q.Where("odp_id IN (?)", db.Model(&domain.ODP{}).Select("id").Where("odc_id = ? AND deleted_at IS NULL", odcID))
	}
	if err := q.Order("name").Find(&clients).Error; err != nil {
		return nil, nil, nil, pkg.MapDBError(err)
	}

	return odcs, odps, clients, nil
}
