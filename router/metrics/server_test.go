package metrics_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/router/metrics"
	"github.com/pg-sharding/shardcore/router/qrouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) qrouter.QueryRouter {
	qr, err := qrouter.NewQueryRouter(&config.Config{
		Sharding: config.ShardingRule{
			Tables: map[string]config.TableRule{
				"t_order": {
					ActualDataNodes: "ds_0.t_order_${0..3}",
					TableStrategy:   &config.Strategy{Type: config.StrategyStandard, ShardingColumn: "order_id", Algorithm: "mod4"},
				},
			},
			ShardingAlgorithms: map[string]config.Algorithm{
				"mod4": {Type: "MOD", Props: map[string]string{"sharding-count": "4"}},
			},
		},
	}, nil)
	require.NoError(t, err)
	return qr
}

func TestHandler(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(metrics.NewHandler(newRouter(t)))
	defer srv.Close()

	type tcase struct {
		method string
		path   string
		body   string
		status int
		check  func(body map[string]any)
	}

	for _, tt := range []tcase{
		{method: http.MethodGet, path: "/health", status: http.StatusOK},
		{method: http.MethodGet, path: "/metrics", status: http.StatusOK},
		{method: http.MethodGet, path: "/preview", status: http.StatusMethodNotAllowed},
		{
			method: http.MethodPost,
			path:   "/preview",
			body:   `{"sql": "SELECT * FROM t_order WHERE order_id = ?", "params": [6]}`,
			status: http.StatusOK,
			check: func(body map[string]any) {
				units := body["units"].([]any)
				assert.Len(units, 1)
				assert.Equal("SELECT * FROM t_order_2 WHERE order_id = ?", units[0].(map[string]any)["sql"])
			},
		},
		{
			method: http.MethodPost,
			path:   "/preview",
			body:   `{"sql": "SELECT * FROM t_order", "data_source": "ds_7"}`,
			status: http.StatusUnprocessableEntity,
			check: func(body map[string]any) {
				assert.Equal(sherror.SHARD_CONFIG_ERROR, body["code"])
			},
		},
		{
			method: http.MethodPost,
			path:   "/preview",
			body:   `{"sql": `,
			status: http.StatusBadRequest,
		},
	} {
		req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		assert.Equal(tt.status, resp.StatusCode, "%s %s", tt.method, tt.path)
		if tt.check != nil {
			var body map[string]any
			assert.NoError(json.NewDecoder(resp.Body).Decode(&body))
			tt.check(body)
		}
		_ = resp.Body.Close()
	}
}
