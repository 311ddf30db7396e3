/*
Copyright © 2019 the retinotopy authors.
This file is part of retinotopy.

retinotopy is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

retinotopy is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with retinotopy.  If not, see <http://www.gnu.org/licenses/>.
*/

/*
Package registry resolves retinotopy model names to flat mesh model
files and builds the models, downloading and caching remote files.

Published model names are built in; a configuration file can add
names or point a built-in name somewhere else:

	cache_dir = "/var/cache/retinotopy"

	[models]
	benson17-lh = "https://example.org/models/lh.benson17.fmm"
	local-test = "/data/models/test.fmm"
*/
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cenkalti/backoff"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/visualmodel/retinotopy"
	"github.com/visualmodel/retinotopy/fmm"
	"github.com/visualmodel/retinotopy/internal/hash"
)

// A Source locates a flat mesh model file: either an http(s) URL or
// a local file path.
type Source string

// Remote reports whether the source must be downloaded.
func (s Source) Remote() bool {
	return strings.HasPrefix(string(s), "http://") || strings.HasPrefix(string(s), "https://")
}

// builtinModels maps the published model names to their sources.
var builtinModels = map[string]Source{
	"benson17-lh": "https://github.com/visualmodel/models/raw/main/lh.benson17.fmm",
	"benson17-rh": "https://github.com/visualmodel/models/raw/main/rh.benson17.fmm",
	"schira10-lh": "https://github.com/visualmodel/models/raw/main/lh.schira10.fmm",
	"schira10-rh": "https://github.com/visualmodel/models/raw/main/rh.schira10.fmm",
}

// BuiltinNames returns the model names known without configuration.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinModels))
	for name := range builtinModels {
		names = append(names, name)
	}
	return names
}

// Config controls where models are found and cached.
type Config struct {
	// CacheDir is the directory downloaded model files are kept in.
	// An empty value means a "retinotopy" directory under the user
	// cache directory.
	CacheDir string

	// Models maps model names to sources, overriding the built-in
	// names where they collide.
	Models map[string]Source
}

// LoadConfig reads a TOML configuration. Unknown keys are an error,
// as are values that do not read as strings.
func LoadConfig(r io.Reader) (*Config, error) {
	var raw struct {
		CacheDir interface{}            `toml:"cache_dir"`
		Models   map[string]interface{} `toml:"models"`
	}
	meta, err := toml.DecodeReader(r, &raw)
	if err != nil {
		return nil, fmt.Errorf("registry: reading configuration: %w", err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("registry: unknown configuration key %q", undec[0].String())
	}
	c := new(Config)
	if raw.CacheDir != nil {
		if c.CacheDir, err = cast.ToStringE(raw.CacheDir); err != nil {
			return nil, fmt.Errorf("registry: cache_dir: %w", err)
		}
	}
	if len(raw.Models) > 0 {
		c.Models = make(map[string]Source, len(raw.Models))
		for name, v := range raw.Models {
			s, err := cast.ToStringE(v)
			if err != nil {
				return nil, fmt.Errorf("registry: models.%s: %w", name, err)
			}
			c.Models[name] = Source(s)
		}
	}
	return c, nil
}

// LoadConfigFile reads a TOML configuration from path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// fetchTries bounds download attempts per model fetch.
const fetchTries = 5

// Loader resolves model names and builds their models. Built models
// are memoized, and concurrent requests for the same source share one
// download and one build. A Loader is safe for concurrent use.
type Loader struct {
	config Config
	client *http.Client

	once  sync.Once
	cache *requestcache.Cache
}

// NewLoader creates a Loader. A nil config uses the built-in model
// names and the default cache directory; a nil client uses
// http.DefaultClient.
func NewLoader(config *Config, client *http.Client) *Loader {
	l := new(Loader)
	if config != nil {
		l.config = *config
	}
	if client == nil {
		client = http.DefaultClient
	}
	l.client = client
	return l
}

// Resolve maps a model name to its source. Names ending in ".fmm"
// and names of existing files resolve to themselves as local paths.
func (l *Loader) Resolve(name string) (Source, error) {
	if s, ok := l.config.Models[name]; ok {
		return s, nil
	}
	if s, ok := builtinModels[name]; ok {
		return s, nil
	}
	if strings.HasSuffix(name, ".fmm") {
		return Source(name), nil
	}
	if _, err := os.Stat(name); err == nil {
		return Source(name), nil
	}
	return "", fmt.Errorf("registry: unknown model %q", name)
}

// Model resolves name and returns its model. Remote sources are
// downloaded into the cache directory first; repeated and concurrent
// calls for one source share a single download and build.
func (l *Loader) Model(ctx context.Context, name string) (*retinotopy.RegisteredModel, error) {
	src, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}
	l.once.Do(func() {
		l.cache = requestcache.NewCache(l.build, 1,
			requestcache.Deduplicate(), requestcache.Memory(20))
	})
	req := l.cache.NewRequest(ctx, src, hash.Hash(string(src)))
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*retinotopy.RegisteredModel), nil
}

// Fetch resolves name and returns the local path of its file,
// downloading a remote source into the cache directory if it is not
// already there.
func (l *Loader) Fetch(ctx context.Context, name string) (string, error) {
	src, err := l.Resolve(name)
	if err != nil {
		return "", err
	}
	return l.localize(ctx, src)
}

// build is the requestcache worker: localize the source, then read
// and build the model.
func (l *Loader) build(ctx context.Context, request interface{}) (interface{}, error) {
	src := request.(Source)
	path, err := l.localize(ctx, src)
	if err != nil {
		return nil, err
	}
	doc, err := fmm.Load(path)
	if err != nil {
		return nil, err
	}
	return doc.Registered()
}

// localize returns a local path holding the source's file.
func (l *Loader) localize(ctx context.Context, src Source) (string, error) {
	if !src.Remote() {
		return string(src), nil
	}
	dir := l.config.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("registry: no cache directory: %w", err)
		}
		dir = filepath.Join(base, "retinotopy")
	}
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return "", fmt.Errorf("registry: %w", err)
	}
	path := filepath.Join(dir, hash.Hash(string(src))+".fmm")
	log := logrus.WithFields(logrus.Fields{"source": string(src), "file": path})
	if _, err := os.Stat(path); err == nil {
		log.Debug("model file already cached")
		return path, nil
	}
	log.Info("fetching model file")
	if err := l.download(ctx, src, path); err != nil {
		return "", err
	}
	return path, nil
}

// download fetches src into path, retrying transient failures with
// exponential backoff. The file appears atomically: it is written
// under a temporary name and renamed only when complete.
func (l *Loader) download(ctx context.Context, src Source, path string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	op := func() error {
		req, err := http.NewRequest(http.MethodGet, string(src), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("registry: %w", err))
		}
		resp, err := l.client.Do(req.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("registry: fetching %s: %w", src, err)
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("registry: fetching %s: %s", src, resp.Status)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("registry: fetching %s: %s", src, resp.Status))
		}
		tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
		if err != nil {
			return backoff.Permanent(fmt.Errorf("registry: %w", err))
		}
		if _, err := io.Copy(tmp, resp.Body); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("registry: fetching %s: %w", src, err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("registry: %w", err)
		}
		return os.Rename(tmp.Name(), path)
	}
	return backoff.Retry(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, fetchTries-1), ctx))
}
