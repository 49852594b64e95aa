package factors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerList(t *testing.T) {
	table, err := NewTable([]Factor{
		{Category: "electricity", Unit: "kWh", Factor: decimal.RequireFromString("0.25"), Source: "EEA", Year: 2022},
		{Category: "electricity", Unit: "kWh", Factor: decimal.RequireFromString("0.233"), Source: "MITECO", Year: 2023},
		{Category: "diesel", Unit: "L", Factor: decimal.RequireFromString("2.68"), Source: "DEFRA", Year: 2023},
	})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewStore(table)).RegisterRoutes(r.Group("/api/v1"))

	tests := []struct {
		query   string
		count   int
		firstBy string
	}{
		{"", 3, ""},
		{"?category=electricity&unit=kWh", 2, "MITECO"},
		{"?unit=L", 1, "DEFRA"},
		{"?category=steam", 0, ""},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/factors"+tt.query, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Factors []Factor `json:"factors"`
			Count   int      `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), tt.query)
		assert.Equal(t, tt.count, body.Count, tt.query)
		assert.Len(t, body.Factors, tt.count, tt.query)
		if tt.firstBy != "" {
			assert.Equal(t, tt.firstBy, body.Factors[0].Source, tt.query)
		}
	}
}
