package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	testlog "service-dispatch/internal/testutil"
)

type counterStub struct{ n int64 }

func (c *counterStub) Inc() { atomic.AddInt64(&c.n, 1) }

func fakeMaps(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleGateway_Geocode(t *testing.T) {
	t.Parallel()

	srv := fakeMaps(t, `{"status":"OK","results":[{
		"formatted_address":"MG Road, Bengaluru, Karnataka, India",
		"geometry":{"location":{"lat":12.9756,"lng":77.6067}}
	}]}`)

	g, err := NewGoogleGateway("test-key", "in", nil, nil, maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	loc, err := g.Geocode(context.Background(), "MG Road")
	require.NoError(t, err)
	require.InDelta(t, 12.9756, loc.Lat, 1e-9)
	require.InDelta(t, 77.6067, loc.Lng, 1e-9)
	require.Equal(t, "MG Road, Bengaluru, Karnataka, India", loc.Address)
}

func TestGoogleGateway_NoResults(t *testing.T) {
	t.Parallel()

	srv := fakeMaps(t, `{"status":"ZERO_RESULTS","results":[]}`)
	rec := testlog.New()
	failures := &counterStub{}

	g, err := NewGoogleGateway("test-key", "", rec.Logger(), failures, maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "nowhere at all")
	require.ErrorIs(t, err, apperr.ErrGeocodeFailed)
	require.EqualValues(t, 1, atomic.LoadInt64(&failures.n))
}

func TestGoogleGateway_EmptyAddress(t *testing.T) {
	t.Parallel()

	g, err := NewGoogleGateway("test-key", "", nil, nil)
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "   ")
	require.ErrorIs(t, err, apperr.ErrGeocodeFailed)
}

func TestStatic(t *testing.T) {
	t.Parallel()

	s := NewStatic(map[string]domain.Location{
		"MG Road": {Lat: 12.9756, Lng: 77.6067},
	})

	loc, err := s.Geocode(context.Background(), "  mg   ROAD ")
	require.NoError(t, err)
	require.InDelta(t, 12.9756, loc.Lat, 1e-9)
	require.Equal(t, "mg   ROAD", loc.Address)

	_, err = s.Geocode(context.Background(), "Koramangala")
	require.ErrorIs(t, err, apperr.ErrGeocodeFailed)
}
