package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/http/middleware"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/repository/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:      0,
		Storage:   config.StorageMemory,
		DB:        config.DefaultDB(),
		Dispatch:  config.DefaultDispatch(),
		Auth:      config.Auth{Mode: config.AuthDev},
		Events:    config.DefaultEvents(),
		RateLimit: config.DefaultRateLimit(),
		Log:       config.Log{Level: "error"},
	}
}

func buildWith(t *testing.T, ctx context.Context, cfg *config.Config) *dig.Container {
	t.Helper()
	c, err := NewContainerBuilder().
		WithConfig(func() (*config.Config, error) { return cfg, nil }).
		build(ctx)
	require.NoError(t, err)
	return c
}

type apiClient struct {
	t   *testing.T
	srv *httptest.Server
}

func (c apiClient) do(method, path, body string, actor domain.Actor) (int, map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set(middleware.HeaderActorID, actor.ID)
	req.Header.Set(middleware.HeaderActorRole, string(actor.Role))
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func startAPI(t *testing.T, cfg *config.Config) apiClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c := buildWith(t, ctx, cfg)
	var client apiClient
	err := c.Invoke(func(srv *http.Server, bus *wiredBus) {
		go func() { _ = bus.Run(ctx) }()
		ts := httptest.NewServer(srv.Handler)
		t.Cleanup(ts.Close)
		client = apiClient{t: t, srv: ts}
	})
	require.NoError(t, err)
	return client
}

func TestBuild_MemoryStorage(t *testing.T) {
	c := buildWith(t, context.Background(), testConfig())

	err := c.Invoke(func(cfg *config.Config, repo dispatchtx.Runner, pub events.Publisher, srv *http.Server, pp pprofServer) {
		require.Equal(t, config.StorageMemory, cfg.Storage)
		require.IsType(t, &memory.Store{}, repo)
		require.IsType(t, &events.Bus{}, pub)
		require.Equal(t, ":0", srv.Addr)
		require.Nil(t, pp.Server)
	})
	require.NoError(t, err)
}

func TestBuild_PprofEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Pprof = config.Pprof{Addr: "127.0.0.1:0"}
	c := buildWith(t, context.Background(), cfg)

	err := c.Invoke(func(pp pprofServer) {
		require.NotNil(t, pp.Server)
	})
	require.NoError(t, err)
}

func TestBuild_JWTWithShortSecretFails(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.Auth{Mode: config.AuthJWT, JWTSecret: "short"}

	_, err := NewContainerBuilder().
		WithConfig(func() (*config.Config, error) { return cfg, nil }).
		build(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "token service")
}

func TestMustBuild_ConfigErrorIsFatal(t *testing.T) {
	var fatal string
	c := NewContainerBuilder().
		WithConfig(func() (*config.Config, error) { return nil, fmt.Errorf("bad env") }).
		WithLogFatalf(func(format string, args ...any) { fatal = fmt.Sprintf(format, args...) }).
		MustBuild(context.Background())

	require.Nil(t, c)
	require.Contains(t, fatal, "failed to build container")
	require.Contains(t, fatal, "bad env")
}

func TestMustBuildWorker_RequiresPostgres(t *testing.T) {
	var fatal string
	connected := false
	c := NewContainerBuilder().
		WithConfig(func() (*config.Config, error) { return testConfig(), nil }).
		WithDBConnect(func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error) {
			connected = true
			return nil, errors.New("unexpected connect")
		}).
		WithLogFatalf(func(format string, args ...any) { fatal = fmt.Sprintf(format, args...) }).
		MustBuildWorker(context.Background())

	require.Nil(t, c)
	require.False(t, connected)
	require.Contains(t, fatal, "failed to build worker container")
	require.Contains(t, fatal, `STORAGE_DRIVER=postgres, got "memory"`)
}

func TestContainer_AutoMatchAssignsPlacedOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Dispatch.AutoMatch = true
	cfg.RateLimit.Enabled = false
	c := startAPI(t, cfg)

	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	customer := domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}

	code, _ := c.do(http.MethodPost, "/vehicles",
		`{"registration":"KA-01-AB-1234","type":"van","capacity_kg":500,"location":{"lat":12.97,"lng":77.59}}`, admin)
	require.Equal(t, http.StatusCreated, code)

	code, d := c.do(http.MethodPost, "/drivers", `{"name":"Ravi Kumar","phone":"+919876543210"}`, admin)
	require.Equal(t, http.StatusCreated, code)
	driverID := d["id"].(string)

	code, _ = c.do(http.MethodPost, "/drivers/"+driverID+"/approve", "", admin)
	require.Equal(t, http.StatusOK, code)

	code, o := c.do(http.MethodPost, "/orders", `{
		"pickup":{"address":"MG Road, Bengaluru"},
		"drop":{"address":"Koramangala, Bengaluru"},
		"package":{"description":"books","weight_kg":20},
		"payment":{"amount":{"amount":15000,"currency":"INR"},"method":"upi"}
	}`, customer)
	require.Equal(t, http.StatusCreated, code)
	orderID := o["id"].(string)

	require.Eventually(t, func() bool {
		_, got := c.do(http.MethodGet, "/orders/"+orderID, "", admin)
		return got["status"] == "assigned"
	}, 2*time.Second, 20*time.Millisecond)

	code, list := c.do(http.MethodGet, "/assignments?driver_id="+driverID, "", admin)
	require.Equal(t, http.StatusOK, code, list)
}

func TestContainer_RateLimitPerActor(t *testing.T) {
	c := startAPI(t, testConfig())
	customer := domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	burst := config.DefaultRateLimit().Burst
	for i := 0; i < burst; i++ {
		code, _ := c.do(http.MethodGet, "/orders", "", customer)
		require.Equal(t, http.StatusOK, code, "request %d", i)
	}
	code, _ := c.do(http.MethodGet, "/orders", "", customer)
	require.Equal(t, http.StatusTooManyRequests, code)

	// operators have their own larger bucket
	for i := 0; i <= burst; i++ {
		code, _ := c.do(http.MethodGet, "/orders", "", admin)
		require.Equal(t, http.StatusOK, code, "admin request %d", i)
	}
}
