package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
)

func TestOrdering_Bind(t *testing.T) {
	tests := []struct {
		query string
		want  []core.DBOrdering
	}{
		{query: "", want: nil},
		{query: "?ordering=created_at", want: []core.DBOrdering{{Field: "created_at", Ascending: true}}},
		{
			query: "?ordering=-points,%20title%20,-,",
			want:  []core.DBOrdering{{Field: "points", Ascending: false}, {Field: "title", Ascending: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ctx := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/v1/achievements"+tt.query, nil), httptest.NewRecorder())
			var ord Ordering
			ord.Bind(ctx)
			assert.Equal(t, tt.want, ord.Orderings)
		})
	}
}
