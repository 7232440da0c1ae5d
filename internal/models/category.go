package models

// CategoryCode identifies one of the fixed spend categories.
type CategoryCode string

const (
	CategoryPapeleria                CategoryCode = "PAPELERIA"
	CategoryLimpieza                 CategoryCode = "LIMPIEZA"
	CategoryMantenimientoMotos       CategoryCode = "MANTENIMIENTO_MOTOS"
	CategoryMantenimientoAutomoviles CategoryCode = "MANTENIMIENTO_AUTOMOVILES"
	CategoryMantenimientoBodegas     CategoryCode = "MANTENIMIENTO_BODEGAS"
	CategoryViaticos                 CategoryCode = "VIATICOS"
	CategorySeguridadHigiene         CategoryCode = "SEGURIDAD_HIGIENE"
	CategoryPublicidadEventos        CategoryCode = "PUBLICIDAD_EVENTOS"
	CategoryConsumibles              CategoryCode = "CONSUMIBLES"
	CategoryCombustibles             CategoryCode = "COMBUSTIBLES"
	CategoryNomina                   CategoryCode = "NOMINA"
	CategoryImpuestos                CategoryCode = "IMPUESTOS"
)

// CategoryCodes lists the twelve spend categories.
var CategoryCodes = []CategoryCode{
	CategoryPapeleria, CategoryLimpieza, CategoryMantenimientoMotos, CategoryMantenimientoAutomoviles,
	CategoryMantenimientoBodegas, CategoryViaticos, CategorySeguridadHigiene, CategoryPublicidadEventos,
	CategoryConsumibles, CategoryCombustibles, CategoryNomina, CategoryImpuestos,
}

// Category is a spend classification.
type Category struct {
	Base
	Code        CategoryCode `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name        string       `gorm:"size:100;not null" json:"name"`
	Description string       `json:"description"`
	IsActive    bool         `gorm:"default:true" json:"is_active"`
}

// Item is a catalog entry that belongs to exactly one category.
type Item struct {
	Base
	CategoryID  string `gorm:"type:uuid;not null;index" json:"category_id"`
	Code        string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `json:"description"`
	Unit        string `gorm:"size:50;default:pieza" json:"unit"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
