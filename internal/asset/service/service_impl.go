package service

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/lubeqc/internal/asset/domain"
	"github.com/smallbiznis/lubeqc/internal/cache"
	"github.com/smallbiznis/lubeqc/internal/config"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	kvdomain "github.com/smallbiznis/lubeqc/internal/kv/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const catalogTTL = 5 * time.Minute

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	Store       kvdomain.Store
	Consumption consumptiondomain.Service
}

type Service struct {
	log         *zap.Logger
	store       kvdomain.Store
	consumption consumptiondomain.Service
	catalogPath string
	imagesDir   string
	tables      cache.Cache[string, *domain.Table]

	mu sync.Mutex
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("asset.service"),
		store:       p.Store,
		consumption: p.Consumption,
		catalogPath: strings.TrimSpace(p.Cfg.AssetCatalogPath),
		imagesDir:   strings.TrimSpace(p.Cfg.ImagesDir),
		tables:      cache.NewTTLCache[string, *domain.Table](8, catalogTTL),
	}
}

func (s *Service) List(ctx context.Context) ([]string, error) {
	var stored []string
	if _, err := kvdomain.GetJSON(ctx, s.store, kvdomain.KeyAssetList, &stored); err != nil {
		s.log.Warn("asset list unreadable, ignoring", zap.Error(err))
		stored = nil
	}

	records, err := s.consumption.List(ctx)
	if err != nil {
		return nil, err
	}
	fromRecords := make([]string, 0, len(records))
	for _, r := range records {
		fromRecords = append(fromRecords, r.AssetID)
	}

	return merge(stored, fromRecords, domain.FallbackAssets), nil
}

func (s *Service) CatalogIDs(ctx context.Context) []string {
	table, err := s.table(ctx)
	if err == nil {
		ids, idErr := table.IDs()
		if idErr == nil {
			return ids
		}
		err = idErr
	}
	s.log.Warn("asset catalog unavailable, using fallback list",
		zap.String("path", s.catalogPath),
		zap.Error(err),
	)
	return merge(domain.FallbackAssets)
}

func (s *Service) Profile(ctx context.Context, name string) (domain.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Profile{}, domain.ErrInvalidAsset
	}
	profile := domain.Profile{Name: name, Fields: []domain.Field{}}

	if table, err := s.table(ctx); err == nil {
		if fields, ok := table.Fields(name); ok {
			profile.Found = true
			profile.Fields = fields
		}
	}
	if !profile.Found {
		custom, err := s.Custom(ctx)
		if err != nil {
			return domain.Profile{}, err
		}
		for _, a := range custom {
			if a.ID == name {
				profile.Found = true
				profile.Custom = true
				profile.Fields = a.Fields()
				break
			}
		}
	}

	if _, err := s.Image(ctx, name); err == nil {
		profile.HasImage = true
	}
	return profile, nil
}

// Image resolves <imagesDir>/<name>.png, then the photo of a custom asset.
func (s *Service) Image(ctx context.Context, name string) (domain.Image, error) {
	name = strings.TrimSpace(name)
	if name == "" || filepath.Base(name) != name || strings.Contains(name, "..") {
		return domain.Image{}, domain.ErrInvalidAsset
	}

	path := filepath.Join(s.imagesDir, name+".png")
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return domain.Image{Path: path, ContentType: "image/png"}, nil
	}

	custom, err := s.Custom(ctx)
	if err != nil {
		return domain.Image{}, err
	}
	for _, a := range custom {
		if a.ID != name {
			continue
		}
		if img, ok := decodePhoto(a.PhotoData); ok {
			return img, nil
		}
	}
	return domain.Image{}, domain.ErrImageNotFound
}

func (s *Service) Custom(ctx context.Context) ([]domain.CustomAsset, error) {
	list := []domain.CustomAsset{}
	if _, err := kvdomain.GetJSON(ctx, s.store, kvdomain.KeyCustomAssets, &list); err != nil {
		s.log.Warn("custom assets unreadable, ignoring", zap.Error(err))
		return []domain.CustomAsset{}, nil
	}
	return list, nil
}

// Upsert replaces the custom asset with the same id or appends it, then
// rewrites the stored asset list.
func (s *Service) Upsert(ctx context.Context, asset domain.CustomAsset) (domain.CustomAsset, error) {
	if err := asset.Validate(); err != nil {
		return domain.CustomAsset{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.Custom(ctx)
	if err != nil {
		return domain.CustomAsset{}, err
	}
	replaced := false
	for i := range list {
		if list[i].ID == asset.ID {
			list[i] = asset
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, asset)
	}

	if err := kvdomain.SetJSON(ctx, s.store, kvdomain.KeyCustomAssets, list); err != nil {
		return domain.CustomAsset{}, err
	}
	names := make([]string, 0, len(list))
	for _, a := range list {
		names = append(names, a.EquipmentID)
	}
	if err := kvdomain.SetJSON(ctx, s.store, kvdomain.KeyAssetList, names); err != nil {
		return domain.CustomAsset{}, err
	}

	s.log.Info("custom asset saved", zap.String("asset", asset.ID), zap.Bool("replaced", replaced))
	return asset, nil
}

func (s *Service) table(_ context.Context) (*domain.Table, error) {
	key := cache.Key(s.catalogPath)
	if table, ok := s.tables.Get(key); ok {
		return table, nil
	}
	f, err := os.Open(s.catalogPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := domain.ParseTable(f)
	if err != nil {
		return nil, err
	}
	s.tables.Set(key, table)
	return table, nil
}

func decodePhoto(data string) (domain.Image, bool) {
	meta, payload, ok := strings.Cut(strings.TrimSpace(data), ",")
	if !ok || !strings.HasPrefix(meta, "data:") || !strings.HasSuffix(meta, ";base64") {
		return domain.Image{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) == 0 {
		return domain.Image{}, false
	}
	contentType := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return domain.Image{Data: raw, ContentType: contentType}, true
}

func merge(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	collate.New(language.English, collate.IgnoreCase).SortStrings(out)
	return out
}
