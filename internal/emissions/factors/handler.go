package factors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the factor table in effect.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/factors", h.List)
}

// List handles GET /factors?category=&unit=. With both filters the rows come
// in resolution order, newest first.
func (h *Handler) List(c *gin.Context) {
	table := h.store.Snapshot()
	category, unit := c.Query("category"), c.Query("unit")

	var rows []Factor
	switch {
	case category != "" && unit != "":
		rows = table.Candidates(category, unit)
	default:
		for _, f := range table.All() {
			if (category == "" || f.Category == category) && (unit == "" || f.Unit == unit) {
				rows = append(rows, f)
			}
		}
	}
	if rows == nil {
		rows = []Factor{}
	}

	c.JSON(http.StatusOK, gin.H{"factors": rows, "count": len(rows)})
}
