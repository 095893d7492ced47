package bootstrap_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute/internal/bootstrap"
	"github.com/ecoroute/ecoroute/internal/config"
	"github.com/ecoroute/ecoroute/internal/geo"
	"github.com/ecoroute/ecoroute/internal/modelstore"
	"github.com/ecoroute/ecoroute/internal/provider/fake"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
)

func TestNewProviders_RegistersClients(t *testing.T) {
	registry := resilience.NewRegistry()

	providers := bootstrap.NewProviders(config.Config{}, bootstrap.ProviderOptions{
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	require.NotNil(t, providers.Traffic)
	require.NotNil(t, providers.Routing)
	require.NotNil(t, providers.AirQuality)

	var names []string
	for _, h := range registry.Snapshot() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"osrm", "tomtom", "waqi"}, names)
}

func TestNewProviders_Offline(t *testing.T) {
	registry := resilience.NewRegistry()

	providers := bootstrap.NewProviders(config.Config{}, bootstrap.ProviderOptions{
		Registry: registry,
		Offline:  true,
		Logger:   zerolog.Nop(),
	})

	assert.IsType(t, &fake.Traffic{}, providers.Traffic)
	assert.IsType(t, &fake.Routing{}, providers.Routing)
	assert.IsType(t, &fake.AirQuality{}, providers.AirQuality)
	assert.Empty(t, registry.Snapshot())
}

func TestOpenStore_Memory(t *testing.T) {
	store, closeStore, err := bootstrap.OpenStore(context.Background(),
		config.Config{ModelStore: config.StoreMemory}, zerolog.Nop())
	require.NoError(t, err)
	defer closeStore()

	assert.IsType(t, &modelstore.MemoryRepository{}, store)
}

func TestOpenStore_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{
		ModelStore: config.StoreSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "models.db"),
	}

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer closeStore()

	require.NoError(t, store.Save(ctx, "nightly", []byte{1, 2, 3}))
	blob, err := store.Load(ctx, "nightly")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, blob)
}

func TestProviders_EnvFactory(t *testing.T) {
	cfg := config.Config{Region: geo.Mumbai, AQICNRegion: "mumbai"}
	providers := bootstrap.NewProviders(cfg, bootstrap.ProviderOptions{Offline: true, Logger: zerolog.Nop()})
	newEnv := providers.EnvFactory(cfg, zerolog.Nop())

	first, err := newEnv(7)
	require.NoError(t, err)
	second, err := newEnv(7)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = first.Reset(ctx)
	require.NoError(t, err)
	_, err = second.Reset(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Scenario(), second.Scenario())
	assert.True(t, cfg.Region.Contains(first.Scenario().Start))
}
