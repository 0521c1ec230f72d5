package ginx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestWaitSeconds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name  string
		query string
		max   int
		want  int
	}{
		{"absent defaults to no wait", "", 30, 0},
		{"within limit passes through", "wait=10", 30, 10},
		{"equal to limit passes through", "wait=30", 30, 30},
		{"above limit clamps to max", "wait=600", 30, 30},
		{"non-numeric ignored", "wait=abc", 30, 0},
		{"zero ignored", "wait=0", 30, 0},
		{"negative ignored", "wait=-5", 30, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/preauth?"+tc.query, nil)

			if got := WaitSeconds(c, tc.max); got != tc.want {
				t.Errorf("WaitSeconds(%q, %d) = %d, want %d", tc.query, tc.max, got, tc.want)
			}
		})
	}
}
