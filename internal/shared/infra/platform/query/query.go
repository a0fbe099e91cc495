package query

// ---------- Tipos de paginación / ordenamiento ----------

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// OffsetPagination para paginación clásica
type OffsetPagination struct {
	Limit  int
	Offset int
}

// PageToOffset convierte page/limit (page empieza en 1) en offset, normalizando valores fuera de rango.
func PageToOffset(page, limit int) OffsetPagination {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page < 1 {
		page = 1
	}
	return OffsetPagination{Limit: limit, Offset: (page - 1) * limit}
}

// Page devuelve el número de página (desde 1) que corresponde al offset.
func (p OffsetPagination) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Sort indica campo y dirección.
type Sort struct {
	Field string // ej. "created_at"
	Desc  bool
}

// NewestFirst es el orden por defecto de los listados.
var NewestFirst = Sort{Field: "created_at", Desc: true}
