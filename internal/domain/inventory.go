package domain

import "time"

// Entity is implemented by every inventory model through its embedded InventoryModel.
type Entity interface {
	Inventory() *InventoryModel
}

// Inventory returns the shared inventory fields.
func (m *InventoryModel) Inventory() *InventoryModel { return m }

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `gorm:"column:lat" json:"lat" binding:"gte=-90,lte=90"`
	Longitude float64 `gorm:"column:lng" json:"lng" binding:"gte=-180,lte=180"`
}

// Location is a site ("lokasi") that hosts cabinets and joint boxes.
type Location struct {
	InventoryModel
	Coordinates
	Name    string `gorm:"size:100;not null" json:"name" binding:"required,min=2,max=100"`
	Address string `gorm:"size:255" json:"address" binding:"max=255"`
	Region  string `gorm:"size:100;index" json:"region" binding:"max=100"`
}

// ODC is an optical distribution cabinet.
type ODC struct {
	InventoryModel
	Coordinates
	Code       string `gorm:"size:50;uniqueIndex;not null" json:"code" binding:"required,max=50"`
	Name       string `gorm:"size:100;not null" json:"name" binding:"required,min=2,max=100"`
	LocationID string `gorm:"size:36;index" json:"location_id" binding:"required"`
	Capacity   int    `json:"capacity" binding:"gte=0,lte=1024"`
}

// ODP is an optical distribution point fed by an ODC.
type ODP struct {
	InventoryModel
	Coordinates
	Code      string `gorm:"size:50;uniqueIndex;not null" json:"code" binding:"required,max=50"`
	Name      string `gorm:"size:100;not null" json:"name" binding:"required,min=2,max=100"`
	ODCID     string `gorm:"column:odc_id;size:36;index" json:"odc_id" binding:"required"`
	Capacity  int    `json:"capacity" binding:"gte=0,lte=64"`
	UsedPorts int    `json:"used_ports" binding:"gte=0,lte=64"`
}

// Cable is a splitter cable leaving an ODC. Its cores are grouped in tubes of
// equal size.
type Cable struct {
	InventoryModel
	Code         string  `gorm:"size:50;uniqueIndex;not null" json:"code" binding:"required,max=50"`
	Name         string  `gorm:"size:100;not null" json:"name" binding:"required,min=2,max=100"`
	ODCID        string  `gorm:"column:odc_id;size:36;index" json:"odc_id" binding:"required"`
	Tubes        int     `json:"tubes" binding:"gte=1,lte=48"`
	CoresPerTube int     `json:"cores_per_tube" binding:"gte=1,lte=24"`
	UsedCores    int     `json:"used_cores" binding:"gte=0"`
	LengthM      float64 `gorm:"column:length_m" json:"length_m" binding:"gte=0"`
}

// Cores is the total core count of the cable.
func (c *Cable) Cores() int { return c.Tubes * c.CoresPerTube }

// JointBox is a splice enclosure on a cable route.
type JointBox struct {
	InventoryModel
	Coordinates
	Code       string `gorm:"size:50;uniqueIndex;not null" json:"code" binding:"required,max=50"`
	Name       string `gorm:"size:100;not null" json:"name" binding:"required,min=2,max=100"`
	LocationID string `gorm:"size:36;index" json:"location_id" binding:"required"`
	Notes      string `gorm:"size:500" json:"notes" binding:"max=500"`
}

// Client is a subscriber connected to an ODP port.
type Client struct {
	InventoryModel
	Coordinates
	Name        string     `gorm:"size:100;not null" json:"name" binding:"required,min=2,max=100"`
	Phone       string     `gorm:"size:30" json:"phone" binding:"max=30"`
	Address     string     `gorm:"size:255" json:"address" binding:"max=255"`
	ODPID       string     `gorm:"column:odp_id;size:36;index" json:"odp_id" binding:"required"`
	Port        int        `json:"port" binding:"gte=0,lte=64"`
	Package     string     `gorm:"size:100" json:"package" binding:"max=100"`
	InstalledAt *time.Time `json:"installed_at"`
}

// Table names are pinned so raw reference checks and the map query do not
// depend on the naming strategy.

func (Location) TableName() string { return "locations" }
func (ODC) TableName() string      { return "odcs" }
func (ODP) TableName() string      { return "odps" }
func (Cable) TableName() string    { return "cables" }
func (JointBox) TableName() string { return "joint_boxes" }
func (Client) TableName() string   { return "clients" }
