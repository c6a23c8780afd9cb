package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/lubeqc/internal/asset/domain"
	"github.com/smallbiznis/lubeqc/internal/config"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	kvdomain "github.com/smallbiznis/lubeqc/internal/kv/domain"
	kvrepository "github.com/smallbiznis/lubeqc/internal/kv/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type consumptionStub struct {
	mock.Mock
	consumptiondomain.Service
}

func (m *consumptionStub) List(ctx context.Context) ([]consumptiondomain.Record, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]consumptiondomain.Record)
	return records, args.Error(1)
}

type fixture struct {
	svc         domain.Service
	store       kvdomain.Store
	consumption *consumptionStub
	dir         string
}

func newFixture(t *testing.T, catalog string) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&kvrepository.Entry{}))

	dir := t.TempDir()
	path := filepath.Join(dir, "assets.csv")
	if catalog != "" {
		require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))
	}
	images := filepath.Join(dir, "Images")
	require.NoError(t, os.MkdirAll(images, 0o755))

	store := kvrepository.NewGormStore(db)
	consumption := new(consumptionStub)
	svc := New(Params{
		Cfg:         config.Config{AssetCatalogPath: path, ImagesDir: images},
		Log:         zap.NewNop(),
		Store:       store,
		Consumption: consumption,
	})
	return fixture{svc: svc, store: store, consumption: consumption, dir: dir}
}

func TestCatalogIDsFallsBack(t *testing.T) {
	f := newFixture(t, "")
	ids := f.svc.CatalogIDs(context.Background())
	assert.Len(t, ids, len(domain.FallbackAssets))
	assert.Equal(t, "BRU - 001 - ENTRY ROLL - BRIDLE ROLL UNIT 2 - Driven Side", ids[0])
}

func TestCatalogIDsFromFile(t *testing.T) {
	f := newFixture(t, "Asset ID,Bearing Type\nZ-1,x\nA-1,y\n")
	assert.Equal(t, []string{"A-1", "Z-1"}, f.svc.CatalogIDs(context.Background()))
}

func TestListMergesSources(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	require.NoError(t, kvdomain.SetJSON(ctx, f.store, kvdomain.KeyAssetList, []string{"zeta", "Alpha", ""}))
	f.consumption.On("List", mock.Anything).Return([]consumptiondomain.Record{
		{AssetID: "beta"}, {AssetID: "Alpha"},
	}, nil)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Alpha",
		"beta",
		"BRU - 001 - ENTRY ROLL - BRIDLE ROLL UNIT 2 - Driven Side",
		"BRU - 002 - ENTRY ROLL - BRIDLE ROLL UNIT 2 - OPS Side",
		"BRU - 003 - MIDDLE ROLL - BRIDLE ROLL UNIT 2 - Driven Side",
		"DFR - 286 - DELFECTOR ROLL ASSEMBLY E3A - OPS Side",
		"zeta",
	}, list)
}

func TestProfileFromCatalogWithImage(t *testing.T) {
	f := newFixture(t, "Equipment / Asset ID,Bearing Type\nBRU - 001,SKF\n")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "Images", "BRU - 001.png"), []byte("png"), 0o600))

	profile, err := f.svc.Profile(context.Background(), "BRU - 001")
	require.NoError(t, err)
	assert.True(t, profile.Found)
	assert.False(t, profile.Custom)
	assert.True(t, profile.HasImage)

	img, err := f.svc.Image(context.Background(), "BRU - 001")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.NotEmpty(t, img.Path)
}

func TestProfileMissing(t *testing.T) {
	f := newFixture(t, "")
	profile, err := f.svc.Profile(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, profile.Found)
	assert.False(t, profile.HasImage)
	assert.Empty(t, profile.Fields)

	_, err = f.svc.Profile(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidAsset)
}

func TestImageRejectsTraversal(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.svc.Image(context.Background(), "../secret")
	assert.ErrorIs(t, err, domain.ErrInvalidAsset)
	_, err = f.svc.Image(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrImageNotFound)
}

func TestUpsertCustomAsset(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, domain.CustomAsset{ID: "NEW - 1"})
	assert.ErrorIs(t, err, domain.ErrInvalidPhoto)

	photo := "data:image/jpeg;base64,/9j/"
	_, err = f.svc.Upsert(ctx, domain.CustomAsset{ID: "NEW - 1", BearingType: "old", PhotoData: photo})
	require.NoError(t, err)
	_, err = f.svc.Upsert(ctx, domain.CustomAsset{ID: "NEW - 2", PhotoData: photo})
	require.NoError(t, err)
	_, err = f.svc.Upsert(ctx, domain.CustomAsset{ID: "NEW - 1", BearingType: "new", PhotoData: photo})
	require.NoError(t, err)

	custom, err := f.svc.Custom(ctx)
	require.NoError(t, err)
	require.Len(t, custom, 2)
	assert.Equal(t, "new", custom[0].BearingType)

	var names []string
	ok, err := kvdomain.GetJSON(ctx, f.store, kvdomain.KeyAssetList, &names)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"NEW - 1", "NEW - 2"}, names)

	profile, err := f.svc.Profile(ctx, "NEW - 1")
	require.NoError(t, err)
	assert.True(t, profile.Custom)
	assert.True(t, profile.HasImage)

	img, err := f.svc.Image(ctx, "NEW - 1")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, img.Data)
}
