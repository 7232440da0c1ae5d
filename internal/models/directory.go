package models

// AreaName is one of the fixed organizational departments.
type AreaName string

const (
	AreaOperaciones          AreaName = "OPERACIONES"
	AreaComercial            AreaName = "COMERCIAL"
	AreaAdministracion       AreaName = "ADMINISTRACION"
	AreaFinanzas             AreaName = "FINANZAS"
	AreaPersonasComunicacion AreaName = "PERSONAS_COMUNICACION"
)

// AreaNames lists every valid area.
var AreaNames = []AreaName{
	AreaOperaciones, AreaComercial, AreaAdministracion, AreaFinanzas, AreaPersonasComunicacion,
}

// LocationName is one of the fixed operating sites.
type LocationName string

const (
	LocationGuadalajara       LocationName = "GUADALAJARA"
	LocationCuliacan          LocationName = "CULIACAN"
	LocationPuertoVallarta    LocationName = "PUERTO_VALLARTA"
	LocationOficinasCentrales LocationName = "OFICINAS_CENTRALES"
)

// LocationNames lists every valid location.
var LocationNames = []LocationName{
	LocationGuadalajara, LocationCuliacan, LocationPuertoVallarta, LocationOficinasCentrales,
}

// Area is an organizational department.
type Area struct {
	Base
	Name        AreaName `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string   `json:"description"`
	IsActive    bool     `gorm:"default:true" json:"is_active"`
}

// Location is a physical site.
type Location struct {
	Base
	Name     LocationName `gorm:"size:50;uniqueIndex;not null" json:"name"`
	IsActive bool         `gorm:"default:true" json:"is_active"`
}

// CostCenter is the budget-owning unit, tied to one area and optionally one location.
type CostCenter struct {
	Base
	Code       string  `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name       string  `gorm:"size:200;not null" json:"name"`
	AreaID     string  `gorm:"type:uuid;not null;index" json:"area_id"`
	LocationID *string `gorm:"type:uuid" json:"location_id,omitempty"`
	IsActive   bool    `gorm:"default:true" json:"is_active"`

	Area     *Area     `gorm:"foreignKey:AreaID" json:"area,omitempty"`
	Location *Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`
}

var areaLabels = map[AreaName]string{
	AreaOperaciones:          "Operaciones",
	AreaComercial:            "Comercial",
	AreaAdministracion:       "Administración",
	AreaFinanzas:             "Finanzas",
	AreaPersonasComunicacion: "Personas y Comunicación",
}

// Label returns the human-readable area name.
func (a AreaName) Label() string {
	if l, ok := areaLabels[a]; ok {
		return l
	}
	return string(a)
}
