package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R0zhkov/wrf/internal/upstream"
)

const loginPage = `<html><body>
<form action="/777/jlogin" method="post">
  <input type="hidden" name="csrf" value="tok">
  <input id="login" name="user_login">
  <input id="password" name="user_password" type="password">
</form>
</body></html>`

const dashboardPage = `<html><body>
<header><span class="d-block">Точка 777</span></header>
<div class="guest-today__item-block">
  12 / 5
  <span class="hint">inside / waiting</span>
  <span class="d-block">Всего: 40</span>
</div>
</body></html>`

type fakeCabinetPage struct {
	dashboard string
	loggedIn  atomic.Bool
	form      atomic.Value
	// placeholderLoads dashboard loads answer without counters first.
	placeholderLoads int32
	loads            atomic.Int32
}

func (f *fakeCabinetPage) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /777", func(w http.ResponseWriter, _ *http.Request) {
		if !f.loggedIn.Load() {
			_, _ = w.Write([]byte(loginPage))
			return
		}
		if f.loads.Add(1) <= f.placeholderLoads {
			_, _ = w.Write([]byte(`<html><body><div class="guest-today__item-block">…</div></body></html>`))
			return
		}
		_, _ = w.Write([]byte(f.dashboard))
	})
	mux.HandleFunc("POST /777/jlogin", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.form.Store(r.PostForm)
		if r.PostForm.Get("user_password") == "secret" {
			f.loggedIn.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newCabinet(t *testing.T, fake *fakeCabinetPage, password string, selectors upstream.SelectorConfig) upstream.Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return newClient(t, upstream.Config{
		Kind:      upstream.VariantClientomerCabinet,
		BaseURL:   srv.URL,
		Login:     "manager",
		Password:  password,
		PointID:   "777",
		Selectors: selectors,

		Render:         upstream.RenderHTTP,
		ReadyTimeoutMS: 300,
		ReadyPollMS:    10,
	}, nil)
}

func TestCabinetSignsInAndScrapes(t *testing.T) {
	t.Parallel()

	fake := &fakeCabinetPage{dashboard: dashboardPage}
	client := newCabinet(t, fake, "secret", upstream.SelectorConfig{})

	got, err := client.Fetch(context.Background(), testQuery("2025-03-08"))
	require.NoError(t, err)

	assert.Equal(t, 12, got.Inside.MustGet())
	assert.Equal(t, 5, got.Waiting)
	assert.Equal(t, 40, got.Total.MustGet())

	form, ok := fake.form.Load().(url.Values)
	require.True(t, ok)
	assert.Equal(t, "tok", form.Get("csrf"))
	assert.Equal(t, "manager", form.Get("user_login"))
}

func TestCabinetFallbackSelectorAndTotal(t *testing.T) {
	t.Parallel()

	fake := &fakeCabinetPage{dashboard: `<html><body><p class="counters">3/4</p></body></html>`}
	fake.loggedIn.Store(true)
	client := newCabinet(t, fake, "secret", upstream.SelectorConfig{
		Counters: []string{".missing", ".counters"},
		Total:    []string{".missing-total"},
	})

	got, err := client.Fetch(context.Background(), testQuery("2025-03-08"))
	require.NoError(t, err)
	assert.Equal(t, 3, got.Inside.MustGet())
	assert.Equal(t, 4, got.Waiting)
	assert.Equal(t, 7, got.Total.MustGet())
}

func TestCabinetLoginFormPersists(t *testing.T) {
	t.Parallel()

	fake := &fakeCabinetPage{dashboard: dashboardPage}
	client := newCabinet(t, fake, "wrong", upstream.SelectorConfig{})

	_, err := client.Fetch(context.Background(), testQuery("2025-03-08"))
	requireKind(t, err, upstream.KindAuthFailed)
}

func TestCabinetCountersMissing(t *testing.T) {
	t.Parallel()

	fake := &fakeCabinetPage{dashboard: `<html><body><div class="guest-today__item-block">soon</div></body></html>`}
	fake.loggedIn.Store(true)
	client := newCabinet(t, fake, "secret", upstream.SelectorConfig{})

	_, err := client.Fetch(context.Background(), testQuery("2025-03-08"))
	requireKind(t, err, upstream.KindParseFailed)
	assert.Contains(t, upstream.SnapshotOf(err), "soon")
}

func TestCabinetTotalComesFromCounterBlock(t *testing.T) {
	t.Parallel()

	fake := &fakeCabinetPage{dashboard: `<html><body>
<header><span class="d-block">Point 125021</span></header>
<div class="guest-today__item-block">3 / 5 <span class="d-block">Всего 1 234</span></div>
</body></html>`}
	fake.loggedIn.Store(true)
	client := newCabinet(t, fake, "secret", upstream.SelectorConfig{})

	got, err := client.Fetch(context.Background(), testQuery("2025-03-08"))
	require.NoError(t, err)
	assert.Equal(t, 3, got.Inside.MustGet())
	assert.Equal(t, 5, got.Waiting)
	assert.Equal(t, 1234, got.Total.MustGet())
}

func TestCabinetTotalFallsBackWithoutBlockSpan(t *testing.T) {
	t.Parallel()

	fake := &fakeCabinetPage{dashboard: `<html><body>
<span class="d-block">Всего: 99</span>
<div class="guest-today__item-block">2 / 4</div>
</body></html>`}
	fake.loggedIn.Store(true)
	client := newCabinet(t, fake, "secret", upstream.SelectorConfig{})

	got, err := client.Fetch(context.Background(), testQuery("2025-03-08"))
	require.NoError(t, err)
	assert.Equal(t, 6, got.Total.MustGet())
}

func TestCabinetWaitsForCountersToRender(t *testing.T) {
	t.Parallel()

	fake := &fakeCabinetPage{dashboard: dashboardPage, placeholderLoads: 3}
	fake.loggedIn.Store(true)
	client := newCabinet(t, fake, "secret", upstream.SelectorConfig{})

	got, err := client.Fetch(context.Background(), testQuery("2025-03-08"))
	require.NoError(t, err)
	assert.Equal(t, 5, got.Waiting)
	assert.Equal(t, int32(4), fake.loads.Load())
}

func TestCabinetStopsWaitingWhenAttemptEnds(t *testing.T) {
	t.Parallel()

	fake := &fakeCabinetPage{dashboard: dashboardPage, placeholderLoads: 1 << 20}
	fake.loggedIn.Store(true)
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	client := newClient(t, upstream.Config{
		Kind:           upstream.VariantClientomerCabinet,
		BaseURL:        srv.URL,
		Login:          "manager",
		Password:       "secret",
		PointID:        "777",
		Render:         upstream.RenderHTTP,
		ReadyTimeoutMS: 60000,
		ReadyPollMS:    10,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Fetch(ctx, testQuery("2025-03-08"))
	requireKind(t, err, upstream.KindUnreachable)
}
